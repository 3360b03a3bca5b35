package includegraph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvariant is wrapped by every InvariantError.
var ErrInvariant = errors.New("include graph invariant violated")

// InvariantError describes one consistency violation.
type InvariantError struct {
	Check  string
	URI    string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %s", ErrInvariant, e.Check, e.URI, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// Names of the checks, as reported in InvariantError.Check.
const (
	CheckNameReentry = "reentry"
	CheckNameSkipped = "skipped"
	CheckNameParity  = "parity"
)

// CheckReentry verifies a re-entered file against its populated node: the
// digest computed now must match the stored one when both are known.
func CheckReentry(n *Node, fresh *FileDigest) error {
	if n == nil {
		return &InvariantError{Check: CheckNameReentry, Detail: "re-entered file has no node"}
	}
	if !n.Populated {
		return &InvariantError{Check: CheckNameReentry, URI: n.URI, Detail: "re-entered file was never populated"}
	}
	if n.Digest != nil && fresh != nil && *n.Digest != *fresh {
		return &InvariantError{
			Check:  CheckNameReentry,
			URI:    n.URI,
			Detail: fmt.Sprintf("same file, different digest: stored %s, now %s", n.Digest, fresh),
		}
	}
	return nil
}

// CheckSkipped verifies that a skipped file was already fully processed.
func CheckSkipped(g *Graph, uri string) error {
	n, ok := g.Node(uri)
	if !ok {
		return &InvariantError{Check: CheckNameSkipped, URI: uri, Detail: "file inserted for the first time on skip"}
	}
	if !n.Populated {
		return &InvariantError{Check: CheckNameSkipped, URI: uri, Detail: "node has not been populated yet"}
	}
	return nil
}

// CheckParity verifies that every entered URI maps to a populated node whose
// stored identity matches its key. Nodes known only through edges are exempt.
func CheckParity(g *Graph, entered []string) error {
	sorted := append([]string(nil), entered...)
	sort.Strings(sorted)

	var errs []error
	for _, u := range sorted {
		n, ok := g.Node(u)
		switch {
		case !ok:
			errs = append(errs, &InvariantError{Check: CheckNameParity, URI: u, Detail: "entered file missing from graph"})
		case !n.Populated:
			errs = append(errs, &InvariantError{Check: CheckNameParity, URI: u, Detail: "entered file not populated"})
		case n.URI != u:
			errs = append(errs, &InvariantError{Check: CheckNameParity, URI: u, Detail: fmt.Sprintf("node identity %q differs from key", n.URI)})
		}
	}
	return errors.Join(errs...)
}
