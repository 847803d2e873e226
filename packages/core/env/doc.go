// Package env resolves templated values against a variable scope and the
// results of previously executed requests.
//
// It provides functionality for:
//   - ${{ expr }} placeholders evaluated with expr-lang against vars and results
//   - ${NAME} placeholders read from the process environment
//   - Lazy, memoised resolution of vars that reference other vars
//   - Loading .env files into the process environment
package env
