// Package roster persists the tag and anchor roster.
//
// FileRepository keeps two JSON files compatible with the worker and anchor
// lists operators already maintain. SQLiteRepository keeps both tables in one
// database file. Both satisfy Repository, which the tracker polls.
package roster
