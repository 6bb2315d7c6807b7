// Package errors provides coded, actionable errors for the bar CLI.
//
// Every error reported to a terminal user carries a code (e.g. "E110") that
// maps to a short message and a longer explanation. Errors found in a file,
// such as a syntax error in bar.json, also carry the location and the
// surrounding lines.
//
// # Error Categories
//
//   - config: bar.json and environment problems
//   - map: collision map loading
//   - transport: connecting to the room server
//   - protocol: rejections reported by the server
//   - cli: command-line usage
//
// # Usage
//
//	err := errors.New("E100").
//	    WithOffset("bar.json", data, syntaxErr.Offset).
//	    WithSuggestion("Remove the trailing comma")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR E100: Invalid bar.json
//	//
//	//   bar.json:4:1
//	//
//	//        2 │   "baseUrl": "http://localhost:8080",
//	//        3 │   "room": "bar",
//	//   →    4 │ }
//	//          │ ^
//	//
//	//   Hint: Remove the trailing comma
package errors
