// Package translation defines the boundary between task handlers and the
// services that translate text between natural languages. Implementations
// live under internal/platform: a bundled message catalog (catalog) and an
// LLM-backed translator (gemini).
package translation
