// Package step reads the entity records of ISO-10303-21 (STEP) exchange files.
//
// The reader is lenient and line oriented: it recognises `#<id> = TYPE(...)`
// records that fit on one line and silently skips everything else. It is not a
// B-rep reader; only CARTESIAN_POINT records are interpreted.
package step
