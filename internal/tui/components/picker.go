package components

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/omvtools/mysqlkeeper/internal/tui"
	"github.com/omvtools/mysqlkeeper/internal/types"
	"github.com/omvtools/mysqlkeeper/pkg/utils"
)

// NewDumpPicker builds a selectable list of managed dumps, newest first as
// provided. onSelect receives the chosen artifact; Escape triggers onCancel.
func NewDumpPicker(dumps []types.DumpArtifact, onSelect func(types.DumpArtifact), onCancel func()) *tview.List {
	list := tview.NewList().
		ShowSecondaryText(true).
		SetHighlightFullLine(true).
		SetSelectedBackgroundColor(tui.KeeperTeal).
		SetSelectedTextColor(tcell.ColorWhite)

	for _, dump := range dumps {
		dump := dump
		secondary := fmt.Sprintf("created %s  %s  %s",
			dump.CreatedAt.Format("2006-01-02 15:04:05 MST"),
			utils.FormatBytes(dump.SizeBytes),
			encryptionLabel(dump))
		list.AddItem(dump.Filename, secondary, 0, func() {
			if onSelect != nil {
				onSelect(dump)
			}
		})
	}

	list.SetDoneFunc(func() {
		if onCancel != nil {
			onCancel()
		}
	})

	list.SetBorder(true).
		SetTitle(" Select dump to restore ").
		SetTitleAlign(tview.AlignCenter).
		SetTitleColor(tui.KeeperTeal).
		SetBorderColor(tui.KeeperTeal).
		SetBackgroundColor(tcell.ColorBlack)

	return list
}

func encryptionLabel(dump types.DumpArtifact) string {
	if dump.Encrypted {
		return tui.SymbolLock + " encrypted"
	}
	return "plain"
}
