// Command toolbox runs image conversion, remote inference jobs, encoder
// operations, and settings management from the terminal.
//
// Operation commands talk to a running toolbox daemon when its socket answers
// and run in process otherwise; --local forces in-process execution. Every
// command accepts --json to print the raw response DTO.
package main
