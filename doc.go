// Package tmplkit discovers templates for several engines under one
// directory tree, renders them by logical name and reports which names
// exist. Engines live under engines/; package fairing wires a Store into
// net/http.
package tmplkit
