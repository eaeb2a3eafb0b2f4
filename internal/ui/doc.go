// Package ui provides semantic text formatting for CLI output.
//
// Formatters render with colour when the terminal supports it. When
// NO_COLOR is set or the terminal cannot show colour, text decorations
// (backticks, quotes, brackets) are used instead.
//
//	ui.Code.Sprint("cipherdesk vault unlock")  // Commands
//	ui.Path.Sprint("config.toml")              // File paths
//	ui.Success.Sprint("✓")                     // Success indicators
//	ui.Error.Sprint("✗")                       // Error indicators
//	ui.Warning.Sprint("[dry-run]")             // Warnings
//	ui.Info.Sprint("→")                        // Hints
//	ui.Highlight.Sprint("alice@example.com")   // User values
//	ui.Sealed.Sprint("encrypted")              // Encrypted markers
//	ui.Muted.Sprint("optional")                // De-emphasized text
package ui
