package tui

import (
	"github.com/gdamore/tcell/v2"
)

// Color palette, loosely following the MySQL/MariaDB brand colors.
var (
	// Primary accent color
	KeeperTeal = tcell.NewRGBColor(0, 117, 143) // #00758F

	// Neutral colors
	KeeperDark  = tcell.NewRGBColor(40, 40, 40)    // #282828
	KeeperGray  = tcell.NewRGBColor(128, 128, 128) // #808080
	KeeperLight = tcell.NewRGBColor(200, 200, 200) // #C8C8C8

	// Status colors
	SuccessGreen  = tcell.NewRGBColor(34, 197, 94)  // #22C55E
	ErrorRed      = tcell.NewRGBColor(239, 68, 68)  // #EF4444
	WarningYellow = tcell.NewRGBColor(234, 179, 8)  // #EAB308
	InfoBlue      = tcell.NewRGBColor(59, 130, 246) // #3B82F6

	// Additional UI colors
	White     = tcell.ColorWhite
	Black     = tcell.ColorBlack
	LightGray = tcell.ColorLightGray
	DarkGray  = tcell.ColorDarkGray
)

// Symbols and icons
const (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolInfo     = "ℹ"
	SymbolSelected = "▸"
	SymbolArrow    = "→"
	SymbolBullet   = "•"
	SymbolLock     = "🔒"
)

// StatusColor returns the appropriate color for a status
func StatusColor(status string) tcell.Color {
	switch status {
	case "success", "ok", "done", "completed", "active":
		return SuccessGreen
	case "error", "failed", "fail", "dead":
		return ErrorRed
	case "warning", "warn", "stale":
		return WarningYellow
	case "info", "pending", "running", "activating":
		return InfoBlue
	default:
		return LightGray
	}
}

// StatusSymbol returns the appropriate symbol for a status
func StatusSymbol(status string) string {
	switch status {
	case "success", "ok", "done", "completed", "active":
		return SymbolSuccess
	case "error", "failed", "fail", "dead":
		return SymbolError
	case "warning", "warn", "stale":
		return SymbolWarning
	case "info", "pending", "running", "activating":
		return SymbolInfo
	default:
		return SymbolBullet
	}
}
