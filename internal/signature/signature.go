// Package signature computes compact fingerprints of ordered record
// collections so callers can skip replacing state when a refresh returns
// unchanged data.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/rickgao/feedsync/internal/model"
)

// Compute returns the signature of items. Equal ordered input yields equal
// output; any change to an id, the order or a tracked mutable field yields a
// different output.
func Compute[T model.Record](items []T) string {
	h := sha256.New()

	var b strings.Builder
	for _, item := range items {
		b.Reset()
		writeField(&b, item.RecordID())
		for _, part := range item.SignatureParts() {
			writeField(&b, part)
		}
		b.WriteByte(';')
		h.Write([]byte(b.String()))
	}

	return strconv.Itoa(len(items)) + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// writeField appends a length-prefixed field so that adjacent fields cannot
// run into each other ("ab"+"c" vs "a"+"bc").
func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
	b.WriteByte('|')
}
