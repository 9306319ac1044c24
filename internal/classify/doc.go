// Package classify infers whether a library file is a show episode, a movie,
// or an extra, using only its path. It performs no I/O.
//
// Rules are evaluated in priority order: an extras ancestor folder wins over
// anything in the filename, an episode pattern in the filename wins over
// extras-like words, and everything else is a movie. Season, Specials and
// single-file folder heuristics refine the result afterwards.
package classify
