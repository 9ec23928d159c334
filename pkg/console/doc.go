// Package console owns the interactive terminal.
//
// All output goes through a Console, which serializes writers with one
// mutex. Output that arrives while a line is being edited is printed with
// the erase, print, redraw sequence: the prompt line is cleared, the text
// is written, and the prompt is drawn again together with whatever the
// user had typed so far.
package console
