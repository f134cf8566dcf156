// Package cmd provides the command-line interface for Tessera with
// configuration loaded from several sources.
//
// Configuration System:
//
//	Sources in order of precedence:
//	1. Command-line flags (--config, --root, --log-level, etc.) - highest priority
//	2. TESSERA_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TESSERA_TEMPLATES_ROOT, etc.)
//	4. Configuration files (.tessera.yml) - lowest priority
//
// Environment Variables:
//
//	TESSERA_CONFIG_FILE: Path to custom configuration file
//	TESSERA_TEMPLATES_ROOT: Override the template root
//	TESSERA_BUILD_OUTPUT: Override the build output directory
//	And more following the TESSERA_<SECTION>_<OPTION> pattern
//
// # Available Commands
//
//   - init: Scaffold a project with a layout, a partial and a page
//   - render: Render one template to stdout or a file
//   - build: Render every page into the output directory
//   - watch: Rebuild on template and features changes
//   - validate: Report block structure problems
//   - list: List pages with their layouts and outputs
//   - config: Show or validate configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Render a page with extra variables
//	tessera render pages/post.html --var title=Hello --vars-file post.yaml
//
//	// Build and keep the dependency manifest
//	tessera build --manifest dist/manifest.yaml
//
//	// Validate every page, rendering each one
//	tessera validate --deep --format json
//
// # Error Handling
//
// Commands return structured errors from the engine. Problems that only affect
// a fragment of a page are logged; run with --log-level debug to see them.
package cmd
