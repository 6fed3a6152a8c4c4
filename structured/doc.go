// Package structured turns free-form model text into validated, typed values.
//
// The pipeline has three steps:
//
//  1. ExtractPayload strips a surrounding markdown code fence.
//  2. Parse decodes the payload, checks it against a Descriptor (required
//     fields and primitive types, unknown fields ignored) and decodes it into
//     the target type. Failures here are formatting errors and surface as
//     core.ErrMalformedOutput.
//  3. Semantic validation runs the caller's rules on the typed value. Failures
//     surface as core.ErrSchemaViolation.
//
// Generate drives the whole pipeline against a model.Generator and issues a
// single corrective follow-up prompt when the first reply is malformed.
// Schema violations are returned immediately.
package structured
