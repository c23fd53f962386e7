// Package coalesce turns raw UCI engine output into a per-move score history.
//
// An engine searching with MultiPV reports one progress line per candidate move
// per depth. Coalesce folds those lines into a CandidateMove per first PV move,
// holding the score reported at every depth from 1 up to the requested maximum.
//
// Only lines of the exact shape
//
//	info depth D seldepth S multipv M score (cp|mate) V nodes N nps N tbhits N time N pv m1 m2 ...
//
// are interpreted. Everything else (banners, bound lines, hashfull reports,
// blank lines, the terminal bestmove line) is classified and skipped.
package coalesce
