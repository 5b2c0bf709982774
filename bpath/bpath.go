// Package bpath implements hierarchical-path splitting and canonicalization
// (spec §4.J), built fresh and grounded on how fd.Cwd_t.Fullpath/
// Canonicalpath call into it and on ustr.Ustr's path primitives.
package bpath

import (
	"golang.org/x/text/unicode/norm"

	"ustr"
)

// Canonicalize resolves "." and ".." components and collapses repeated
// slashes in an absolute path, returning a normalized absolute Ustr. Each
// component is additionally NFC-normalized (golang.org/x/text) so that
// two byte-distinct but visually identical component spellings compare
// equal -- without this, the path-split idempotence property (spec §8)
// only holds for already-normalized input.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	comps := Split(p)
	var out []ustr.Ustr
	for _, c := range comps {
		switch {
		case c.Isdot() || len(c) == 0:
			continue
		case c.Isdotdot():
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, normalize(c))
		}
	}
	return Join(out)
}

func normalize(c ustr.Ustr) ustr.Ustr {
	return ustr.Ustr(norm.NFC.Bytes([]byte(c)))
}

// Split breaks an absolute or relative path into its slash-delimited
// components, discarding empty components produced by repeated or
// trailing slashes.
func Split(p ustr.Ustr) []ustr.Ustr {
	var comps []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				comps = append(comps, p[start:i])
			}
			start = i + 1
		}
	}
	return comps
}

// Join reassembles components into an absolute path.
func Join(comps []ustr.Ustr) ustr.Ustr {
	out := ustr.Ustr{'/'}
	for i, c := range comps {
		if i > 0 {
			out = append(out, '/')
		}
		out = append(out, c...)
	}
	return out
}

// SplitLast splits a path into (parent directory, last component), as
// spec §4.J requires for create/remove/mkdir/open to locate the parent
// first. A trailing slash is treated as a directory reference with an
// empty last component, matching spec's explicit rule.
func SplitLast(p ustr.Ustr) (dir ustr.Ustr, last ustr.Ustr) {
	if len(p) > 0 && p[len(p)-1] == '/' {
		return Canonicalize(p), ustr.MkUstr()
	}
	i := p.LastIndexByte('/')
	if i < 0 {
		return ustr.MkUstrDot(), p
	}
	dirPart := p[:i]
	if len(dirPart) == 0 {
		dirPart = ustr.MkUstrRoot()
	}
	return dirPart, p[i+1:]
}
