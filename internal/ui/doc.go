// Package ui implements an interactive upload monitor using bubbletea's Elm architecture.
//
// The TUI walks through one upload run:
//  1. [DiscoverView] : Scan, hash and check the library against the server
//  2. [ItemListView] : Browse discovered voice notes and their status
//  3. [ConfirmView] : Confirm uploading the pending notes
//  4. [UploadView] : Watch in-flight uploads, retries and overall progress
//  5. [ResultView] : Display the run summary
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Engine progress and queue events arrive on channels; the in-flight set is polled from the queue on a short tick.
//
// Keyboard navigation uses vim-style bindings (j/k, u, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
