// Package builtin provides the functions available inside ${{ }} template
// expressions and test assertions.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(): Current UTC time in RFC 3339 format
//   - timestamp(), timestampMs(): Current Unix time in seconds or milliseconds
//   - date(layout): Current UTC date formatted with a Go layout
//   - random(min, max): Random integer in range
//   - randomString(length), randomEmail(): Random test data
//   - base64(s), base64Decode(s), md5(s), sha256(s): Encoding and hashing
//   - urlEncode(s), urlDecode(s): Query escaping
//   - env(name[, default]): Environment variable value
//   - toJSON(v), fromJSON(s): JSON conversion
//
// Functions are exposed to expr-lang programs through Registry.Options.
package builtin
