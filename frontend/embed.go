// Package webui embeds the single-page submission UI served at /.
package webui

import _ "embed"

//go:embed index.html
var index []byte

// Index returns the UI page bytes.
func Index() []byte {
	return index
}
