package identity

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Kind int

const (
	Internal Kind = iota
	External
)

func (k Kind) String() string {
	if k == External {
		return "external"
	}
	return "internal"
}

// Key is the canonical cross-source identity of a worker.
type Key string

// Identity is one logical worker. Internal workers carry a stable id;
// externals are only known by display name.
type Identity struct {
	Kind     Kind   `json:"kind"`
	WorkerID int    `json:"worker_id,omitempty"`
	Name     string `json:"name"`
	Company  string `json:"company,omitempty"`
}

func NewInternal(workerID int, name string) Identity {
	return Identity{Kind: Internal, WorkerID: workerID, Name: name}
}

func NewExternal(name, company string) Identity {
	return Identity{Kind: External, Name: strings.TrimSpace(name), Company: company}
}

func (i Identity) Key() Key {
	if i.Kind == External {
		return ExternalKey(i.Name)
	}
	return InternalKey(i.WorkerID)
}

func (i Identity) String() string {
	if i.Kind == External {
		return fmt.Sprintf("%s (external)", i.Name)
	}
	return fmt.Sprintf("%s (#%d)", i.Name, i.WorkerID)
}

func InternalKey(workerID int) Key {
	return Key("w:" + strconv.Itoa(workerID))
}

func ExternalKey(name string) Key {
	return Key("x:" + NormalizeName(name))
}

// IsExternal reports whether k was built from a display name.
func (k Key) IsExternal() bool {
	return strings.HasPrefix(string(k), "x:")
}

// NormalizeName trims, collapses inner whitespace, strips diacritics and
// case-folds a display name. Two different people sharing a name collapse
// onto the same value; Consolidate reports those collisions.
func NormalizeName(name string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripAccents, name)
	if err != nil {
		out = name
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}
