// Package env resolves {{...}} references in request templates.
//
// It provides functionality for:
//   - Variable interpolation using {{variable}} syntax
//   - Process environment lookups using {{$NAME}}
//   - Built-in function evaluation (uuid, timestamp, random, etc.)
//   - Loading dotenv files and prefixed process variables
package env
