package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// operationSummary describes the operation a request will execute.
type operationSummary struct {
	operationType string
	operationName string
	rootFields    []string
	depth         int
}

// readGraphQLRequest returns the query and operation name of a GET or POST
// request, restoring the body for the next handler.
func readGraphQLRequest(r *http.Request) (query, operationName string) {
	switch r.Method {
	case http.MethodGet:
		return r.URL.Query().Get("query"), r.URL.Query().Get("operationName")
	case http.MethodPost:
	default:
		return "", ""
	}
	if r.Body == nil {
		return "", ""
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if strings.Contains(r.Header.Get("Content-Type"), "application/graphql") {
		return string(body), ""
	}
	var payload struct {
		Query         string `json:"query"`
		OperationName string `json:"operationName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return payload.Query, payload.OperationName
}

// summarizeOperation parses query and picks the operation that will run. It
// returns nil when the document is empty, does not parse, or names no
// matching operation; execution reports those errors itself.
func summarizeOperation(query, operationName string) *operationSummary {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(query), Name: "graphql"}),
	})
	if err != nil {
		return nil
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	var ops []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			if d.Name != nil {
				fragments[d.Name.Value] = d
			}
		case *ast.OperationDefinition:
			ops = append(ops, d)
		}
	}

	var op *ast.OperationDefinition
	for _, candidate := range ops {
		if operationName == "" || (candidate.Name != nil && candidate.Name.Value == operationName) {
			op = candidate
			break
		}
	}
	if op == nil {
		return nil
	}

	summary := &operationSummary{operationType: string(op.Operation)}
	if op.Name != nil {
		summary.operationName = op.Name.Value
	}
	roots := map[string]struct{}{}
	collectRootFields(op.SelectionSet, fragments, roots, map[string]bool{})
	for name := range roots {
		summary.rootFields = append(summary.rootFields, name)
	}
	sort.Strings(summary.rootFields)
	summary.depth = selectionDepth(op.SelectionSet, fragments, map[string]bool{})
	return summary
}

func collectRootFields(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, out map[string]struct{}, seen map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name != nil && !strings.HasPrefix(sel.Name.Value, "__") {
				out[sel.Name.Value] = struct{}{}
			}
		case *ast.InlineFragment:
			collectRootFields(sel.SelectionSet, fragments, out, seen)
		case *ast.FragmentSpread:
			if sel.Name == nil || seen[sel.Name.Value] {
				continue
			}
			seen[sel.Name.Value] = true
			if frag := fragments[sel.Name.Value]; frag != nil {
				collectRootFields(frag.SelectionSet, fragments, out, seen)
			}
		}
	}
}

// selectionDepth counts field levels; fragments add no level of their own.
// inFlight stops cyclic spreads.
func selectionDepth(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, inFlight map[string]bool) int {
	if set == nil {
		return 0
	}
	deepest := 0
	for _, selection := range set.Selections {
		var d int
		switch sel := selection.(type) {
		case *ast.Field:
			d = 1 + selectionDepth(sel.SelectionSet, fragments, inFlight)
		case *ast.InlineFragment:
			d = selectionDepth(sel.SelectionSet, fragments, inFlight)
		case *ast.FragmentSpread:
			if sel.Name == nil || inFlight[sel.Name.Value] {
				continue
			}
			if frag := fragments[sel.Name.Value]; frag != nil {
				inFlight[sel.Name.Value] = true
				d = selectionDepth(frag.SelectionSet, fragments, inFlight)
				delete(inFlight, sel.Name.Value)
			}
		}
		if d > deepest {
			deepest = d
		}
	}
	return deepest
}
