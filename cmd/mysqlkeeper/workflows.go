package main

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/omvtools/mysqlkeeper/internal/cli"
	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/encryption"
	"github.com/omvtools/mysqlkeeper/internal/input"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/mysql"
	"github.com/omvtools/mysqlkeeper/internal/rpc"
	"github.com/omvtools/mysqlkeeper/internal/storage"
	"github.com/omvtools/mysqlkeeper/internal/tui"
	"github.com/omvtools/mysqlkeeper/internal/tui/components"
	"github.com/omvtools/mysqlkeeper/internal/types"
	"github.com/omvtools/mysqlkeeper/pkg/utils"
)

// runRestore restores a dump into the server. When the given path is a
// directory, the user picks one of its dumps interactively. Encrypted
// dumps are decrypted to a temporary file that is removed afterwards.
func runRestore(ctx context.Context, logger *logging.Logger, cfg *config.Config, svc *rpc.Service, caller rpc.Caller, args *cli.Args) error {
	dumpPath := args.RestorePath
	info, err := os.Stat(dumpPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		artifact, err := pickDump(ctx, dumpPath, args.ForceCLI)
		if err != nil {
			return err
		}
		dumpPath = artifact.Path
	}

	if err := ensureInteractiveStdin(); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	question := fmt.Sprintf("Restore %s? This replaces all databases on the server. [y/N]: ",
		filepath.Base(dumpPath))
	confirmed, err := promptYesNo(ctx, reader, question, false)
	if err != nil {
		return err
	}
	if !confirmed {
		return input.ErrInputAborted
	}

	if strings.HasSuffix(dumpPath, ".age") {
		passphrase, err := promptPassphrase(ctx)
		if err != nil {
			return err
		}
		plainPath, remove, err := decryptDumpToTemp(dumpPath, passphrase)
		if err != nil {
			return err
		}
		defer remove()
		dumpPath = plainPath
	}

	loginPassword, err := promptLoginPassword(ctx, cfg.LoginUser)
	if err != nil {
		return err
	}

	if err := svc.UploadBackup(ctx, caller, dumpPath, loginPassword); err != nil {
		return err
	}
	logger.Info("Restore completed successfully")
	return nil
}

// runDecrypt converts an encrypted managed dump into a plaintext dump next
// to it. The plaintext file is never allowed to overwrite an existing dump.
func runDecrypt(ctx context.Context, logger *logging.Logger, cfg *config.Config, args *cli.Args) error {
	dumps, err := findEncryptedDumps(cfg.SharedFolderRoot)
	if err != nil {
		return err
	}
	if len(dumps) == 0 {
		return fmt.Errorf("no encrypted dumps found under %s", cfg.SharedFolderRoot)
	}

	artifact, err := selectDump(ctx, dumps, args.ForceCLI)
	if err != nil {
		return err
	}

	if err := ensureInteractiveStdin(); err != nil {
		return err
	}
	passphrase, err := promptPassphrase(ctx)
	if err != nil {
		return err
	}
	identity, err := encryption.DeriveIdentityFromPassphrase(passphrase)
	if err != nil {
		return err
	}

	dst := strings.TrimSuffix(artifact.Path, ".age")
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", mysql.ErrDumpExists, dst)
	}
	if err := encryption.DecryptFile(artifact.Path, dst, identity); err != nil {
		return err
	}
	logger.Info("Decrypted %s to %s", artifact.Filename, dst)
	return nil
}

func pickDump(ctx context.Context, dir string, forceCLI bool) (types.DumpArtifact, error) {
	dumps, err := storage.ListDumps(dir)
	if err != nil {
		return types.DumpArtifact{}, err
	}
	if len(dumps) == 0 {
		return types.DumpArtifact{}, fmt.Errorf("no dumps found in %s", dir)
	}
	return selectDump(ctx, dumps, forceCLI)
}

func selectDump(ctx context.Context, dumps []types.DumpArtifact, forceCLI bool) (types.DumpArtifact, error) {
	if forceCLI || !term.IsTerminal(int(os.Stdout.Fd())) {
		return pickDumpCLI(ctx, dumps)
	}
	return pickDumpTUI(dumps)
}

func pickDumpTUI(dumps []types.DumpArtifact) (types.DumpArtifact, error) {
	app := tui.NewApp()
	var selected *types.DumpArtifact
	list := components.NewDumpPicker(dumps, func(d types.DumpArtifact) {
		selected = &d
		app.Stop()
	}, func() {
		app.Stop()
	})
	app.SetRoot(list, true).SetFocus(list)
	if err := app.Run(); err != nil {
		return types.DumpArtifact{}, err
	}
	if selected == nil {
		return types.DumpArtifact{}, input.ErrInputAborted
	}
	return *selected, nil
}

func pickDumpCLI(ctx context.Context, dumps []types.DumpArtifact) (types.DumpArtifact, error) {
	fmt.Println("Available dumps:")
	for i, d := range dumps {
		label := "plain"
		if d.Encrypted {
			label = "encrypted"
		}
		fmt.Printf("  %2d) %s  %s  %s\n", i+1, d.Filename, utils.FormatBytes(d.SizeBytes), label)
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		if err := ctx.Err(); err != nil {
			return types.DumpArtifact{}, input.ErrInputAborted
		}
		fmt.Print("Select dump number (empty to abort): ")
		line, err := input.ReadLineWithContext(ctx, reader)
		if err != nil {
			return types.DumpArtifact{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return types.DumpArtifact{}, input.ErrInputAborted
		}
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > len(dumps) {
			fmt.Printf("Enter a number between 1 and %d.\n", len(dumps))
			continue
		}
		return dumps[idx-1], nil
	}
}

// decryptDumpToTemp decrypts an encrypted dump into a plaintext file inside
// a private temporary directory and returns its path along with a cleanup
// function. The directory keeps the destination path unique without creating
// the file up front, which the exclusive-create decryption would refuse.
func decryptDumpToTemp(dumpPath, passphrase string) (string, func(), error) {
	identity, err := encryption.DeriveIdentityFromPassphrase(passphrase)
	if err != nil {
		return "", nil, err
	}
	tmpDir, err := os.MkdirTemp("", "mysqlkeeper-restore-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	plainName := strings.TrimSuffix(filepath.Base(dumpPath), ".age")
	plainPath := filepath.Join(tmpDir, plainName)
	if err := encryption.DecryptFile(dumpPath, plainPath, identity); err != nil {
		cleanup()
		return "", nil, err
	}
	return plainPath, cleanup, nil
}

func findEncryptedDumps(root string) ([]types.DumpArtifact, error) {
	var dumps []types.DumpArtifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		artifact, ok := storage.ArtifactFor(filepath.Dir(path), d.Name(), info.Size())
		if ok && artifact.Encrypted {
			dumps = append(dumps, artifact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(dumps, func(i, j int) bool {
		return dumps[i].CreatedAt.After(dumps[j].CreatedAt)
	})
	return dumps, nil
}
