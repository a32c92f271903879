package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/cobra"

	"github.com/stratalab/strata/internal/store"
)

// recordSchema constrains the stored record envelope. Every blob must
// carry a type tag and an object id; the body stays open because each
// type serializes its own fields.
const recordSchema = `
#Record: {
	"@type": string & !=""
	"@oid":  string & !=""
	...
}
`

// keyLister is the enumeration surface of the storage backends. Both
// the file and the sqlite backend implement it; the engine itself never
// enumerates storage.
type keyLister interface {
	Keys() ([]store.OID, error)
}

// checkData is the JSON payload of the check command.
type checkData struct {
	Records int      `json:"records"`
	Errors  []string `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate every stored metadata record",
		Long: `Validate every stored metadata record.

Each blob is checked against the record envelope schema, its id is
compared with its storage key, and every object reference is resolved
against the set of stored blobs. Exits with status 1 when any record
fails.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	lister, ok := ws.db.Storage().(keyLister)
	if !ok {
		return WrapExitError(ExitCommandError, "storage backend does not support enumeration", nil)
	}
	keys, err := lister.Keys()
	if err != nil {
		return WrapExitError(ExitCommandError, "enumerate storage", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(recordSchema).LookupPath(cue.ParsePath("#Record"))
	if err := schema.Err(); err != nil {
		return WrapExitError(ExitCommandError, "compile record schema", err)
	}

	known := make(map[store.OID]bool, len(keys))
	for _, key := range keys {
		known[key] = true
	}

	var problems []string
	for _, key := range keys {
		rec, err := ws.db.Storage().Load(key)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		problems = append(problems, checkRecord(ctx, schema, known, key, rec)...)
	}

	data := checkData{Records: len(keys), Errors: problems}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := out.Success(data); err != nil {
			return err
		}
	} else {
		lines := []string{fmt.Sprintf("Checked %d record(s)", data.Records)}
		lines = append(lines, problems...)
		if len(problems) == 0 {
			lines = append(lines, "OK")
		}
		if err := out.Success(lines); err != nil {
			return err
		}
	}
	if len(problems) > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d record(s) failed validation", len(problems)), nil)
	}
	return nil
}

// checkRecord validates one blob: envelope schema, key/id agreement and
// reference reachability.
func checkRecord(ctx *cue.Context, schema cue.Value, known map[store.OID]bool, key store.OID, rec store.Record) []string {
	var problems []string

	raw, err := json.Marshal(rec)
	if err != nil {
		return []string{fmt.Sprintf("%s: encode record: %v", key, err)}
	}
	value := ctx.CompileBytes(raw)
	if err := value.Err(); err != nil {
		return []string{fmt.Sprintf("%s: parse record: %v", key, err)}
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", key, err))
	}

	if oid, _ := rec["@oid"].(string); oid != "" && !strings.EqualFold(oid, string(key)) {
		problems = append(problems, fmt.Sprintf("%s: record id %q does not match storage key", key, oid))
	}

	for _, ref := range collectReferences(rec) {
		if !known[ref] {
			problems = append(problems, fmt.Sprintf("%s: reference to missing blob %s", key, ref))
		}
	}
	return problems
}

// collectReferences walks a record and gathers the OIDs of every object
// reference it contains.
func collectReferences(value any) []store.OID {
	var refs []store.OID
	switch node := value.(type) {
	case map[string]any:
		if isRef, _ := node["@reference"].(bool); isRef {
			if oid, _ := node["@oid"].(string); oid != "" {
				refs = append(refs, store.OID(oid))
			}
			return refs
		}
		for _, child := range node {
			refs = append(refs, collectReferences(child)...)
		}
	case store.Record:
		refs = append(refs, collectReferences(map[string]any(node))...)
	case []any:
		for _, child := range node {
			refs = append(refs, collectReferences(child)...)
		}
	}
	return refs
}
