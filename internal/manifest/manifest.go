// Package manifest loads election manifests written in CUE.
//
// A manifest declares the registrants on the ballot and the administrator
// identities bound to pre-enrolled template slots:
//
//	election: {
//		name: "Municipal 2026"
//		registrants: ["Red", "Blue"]
//		administrators: [{name: "Returning Officer", slot: 0}]
//	}
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ballot/internal/model"
)

// schema is unified with the manifest before decoding. Definitions are
// closed, so misspelt fields are rejected.
const schema = `
#Administrator: {
	name: string & =~"\\S"
	slot: int & >=0 & <=1000
}

#Election: {
	name?: string
	registrants: [...string & =~"\\S"]
	administrators: [...#Administrator] | *[]
}
`

// Error codes reported by Load.
const (
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeSchema      = "E301" // Manifest does not match the schema
	ErrCodeDuplicate   = "E302" // Registrant or slot declared twice
)

// Election is a decoded manifest.
type Election struct {
	Name           string          `json:"name"`
	Registrants    []string        `json:"registrants"`
	Administrators []Administrator `json:"administrators"`
}

// Administrator is an administrator identity declared by the manifest.
type Administrator struct {
	Name string `json:"name"`
	Slot int    `json:"slot"`
}

// LoadError is a manifest failure with its CUE position when known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads the CUE package in dir and returns its election value.
// Names are normalised the same way the ledger normalises them.
func Load(dir string) (*Election, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest directory not found: %s", dir)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil || len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}

	return decode(ctx, value.LookupPath(cue.ParsePath("election")))
}

// Parse decodes a manifest from CUE source. Used for inline manifests.
func Parse(filename string, src []byte) (*Election, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}
	return decode(ctx, value.LookupPath(cue.ParsePath("election")))
}

func decode(ctx *cue.Context, v cue.Value) (*Election, error) {
	if !v.Exists() {
		return nil, &LoadError{Code: ErrCodeSchema, Message: "manifest has no election field"}
	}

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Election"))
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}

	var e Election
	if err := unified.Decode(&e); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}
	if err := e.normalize(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *Election) normalize() error {
	seen := make(map[string]bool, len(e.Registrants))
	for i, name := range e.Registrants {
		n := model.NormalizeName(name)
		if seen[n] {
			return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("registrant %q declared twice", n)}
		}
		seen[n] = true
		e.Registrants[i] = n
	}

	slots := make(map[int]bool, len(e.Administrators))
	for i, a := range e.Administrators {
		if slots[a.Slot] {
			return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("slot %d declared twice", a.Slot)}
		}
		slots[a.Slot] = true
		e.Administrators[i].Name = model.NormalizeName(a.Name)
	}
	return nil
}

func cueError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: cueerrors.Details(err, nil)}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = errs[0].Position()
		le.Message = errs[0].Error()
	}
	return le
}
