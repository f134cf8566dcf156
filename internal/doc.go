// Package internal contains the core implementation packages for tessera.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the tessera CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - markup: Block marker scanning, structure validation and marker stripping
//   - include: [include path] expansion with cycle detection
//   - compose: [extends] inheritance and block merging
//   - sandbox: Expression lexer, parser and evaluator with a safe function set
//   - pipeline: Loop, conditional, user call and substitution passes
//   - registry: Feature variables, user functions and the included-files record
//   - engine: Render and compile entry points tying the stages together
//   - config: Configuration loading and validation
//   - errors: Structured engine errors
//   - logging: Structured logging on log/slog
//   - watcher: File system monitoring with debouncing
//   - version: Build and version information
//   - testutils: Shared test helpers
//
// # Render Flow
//
// A page is rendered in three stages, each owned by one package:
//
//   - include resolves [include] directives against the template root
//   - compose applies the [extends] chain and strips block markers
//   - pipeline evaluates {{ }} tags until the output stops changing
//
// The engine package runs the stages and holds the state shared between
// renders: the feature registry, the compilation flag and the record of
// files the engine wrote.
//
// # Security Considerations
//
//   - include and compose never read outside the template root
//   - sandbox rejects references to ambient capabilities and unsafe keys
//   - Every pass count and the expression timeout are bounded by config
//
// For detailed documentation, see the individual package documentation.
package internal
