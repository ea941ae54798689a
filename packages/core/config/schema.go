package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Validate checks a decoded config document against the embedded schema.
// Unknown keys, wrong types and out-of-range values are errors.
func Validate(raw any) error {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	doc := v.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := doc.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}
	return nil
}
