// Package gemini implements translation.Translator with Google's Gemini
// models through the google.golang.org/genai client.
//
// Each request renders a prompt template, calls GenerateContent and returns
// the concatenated text parts of the first candidate. Transient API errors
// are retried with exponential backoff and jitter; blocked or empty
// responses fail immediately.
package gemini
