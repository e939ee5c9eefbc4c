// Package attendance implements face registration and attendance
// verification on top of a facevec index.
//
// Registration keeps exactly one embedding per user by replacing any earlier
// one. Verification accepts a check-in only when the nearest stored face
// belongs to the claimed user and lies closer than the threshold.
package attendance
