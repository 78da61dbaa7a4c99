// Package pdf reads the text layer of PDF files. It parses the file
// structure and interprets page content streams; nothing in the document is
// rendered or executed.
package pdf
