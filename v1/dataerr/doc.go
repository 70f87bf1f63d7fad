// Package dataerr defines the error taxonomy shared by every layer of the
// data plane.
//
// Errors raised by the enforcer, compiler, executor and dispatcher are
// *Error values carrying a Kind and a stable Code. The outermost layer turns
// any error into the uniform Info shape with Normalize:
//
//	if err != nil {
//	    return Result{Error: dataerr.Normalize(err)}
//	}
//
// Duplicate-key violations always carry CodeDuplicateKey ("23505"), whatever
// the driver reported.
package dataerr
