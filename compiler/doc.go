/*

Process of compilation

Resolved Tree (ast) ->
	lower ->
Three Address Code (ir) ->
	cfg, df: constant propagation, dead code ->
	opt (repeat until nothing changes) ->
Optimized Three Address Code (ir) ->
	back: layout, emit ->
x86-64 Assembly Text ->
	as, link with runtime ->
Binary Executable

*/
package compiler
