/*

Process of compilation

B Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	lower ->
LLVM IR Module (textual) ->
	backend: optimize, emit object, link against the B runtime ->
Binary Executable

The backend steps are external to this module. Everything a B program can
name is emitted with the `b.` symbol prefix; addresses are word-indexed.

*/
package compiler
