// Package logger wraps zap with a global sugared logger and context helpers.
//
// Components never hold a logger of their own: they pull it out of the context
// (FromContext), scope it (WithName, WithKV) and write through the KV helpers so
// that every entry carries the component name and snake_case fields.
package logger
