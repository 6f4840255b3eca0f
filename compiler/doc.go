/*
Package compiler turns a single-class JMM source file into Jasmin assembly.

	Program Text ->
		parse ->
	Abstract Syntax Tree (ast) ->
		sym, analyze ->
	Annotated Tree and Symbol Table ->
		lower ->
	OLLIR (ollir) ->
		optimize ->
	OLLIR with Local Slots ->
		back ->
	Jasmin Assembly ->
		asm ->
	Class File

Every stage returns a report.List. The pipeline stops after the first stage
that reports an error and keeps the artifacts of the stages before it.
*/
package compiler
