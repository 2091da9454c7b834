// Package geometry solves 2D tag positions from anchor distances.
//
// The solver is closed-form trilateration over the first three points it is
// given. Additional points are accepted but do not refine the result.
package geometry
