// Package config loads embytools' runtime settings and tool catalog.
//
// # Settings
//
// Settings come from command-line flags and EMBYTOOLS_* environment
// variables, bound through viper:
//
//	EMBYTOOLS_ROOT         installation root (default ~/.emby/embedded-tools)
//	EMBYTOOLS_CATALOG      Lua catalog file
//	EMBYTOOLS_API_URL      GitHub API base URL
//	EMBYTOOLS_LOG_LEVEL    debug, info, warn or error
//	EMBYTOOLS_PLATFORM     override platform detection ("win32", "linux/arm64")
//	EMBYTOOLS_NO_PROGRESS  disable download progress
//
// A dynamically resolved tool can be pointed at another repository with
// EMBYTOOLS_<TOOL>_REPO_OWNER and EMBYTOOLS_<TOOL>_REPO_NAME. For renode the
// unprefixed RENODE_REPO_OWNER and RENODE_REPO_NAME are honoured as well.
//
// # Catalog
//
// The built-in tools can be overridden or extended by a Lua file evaluated
// in a sandboxed gopher-lua VM (no os, io, module loading or metatable
// access). Platform information is injected as a read-only "platform"
// table so entries can be conditional:
//
//	embytools = {
//	  tools = {
//	    { name = "openocd", version = "0.12.0-7" },
//	    platform.is_linux and {
//	      name = "picotool",
//	      resolution = "dynamic",
//	      owner = "raspberrypi",
//	      repo = "pico-sdk-tools",
//	      asset_pattern = "picotool-{platform}",
//	      path_dirs = { "picotool" },
//	      exec_dirs = { "picotool" },
//	      markers = { linux = "picotool/picotool" },
//	    } or nil,
//	  },
//	}
//
// Evaluation is bounded by the context deadline, 5 seconds when none is
// set.
//
// # Logging
//
// Logger is the structured logging interface used across the installer.
// NewLogrusLogger backs it with logrus; NoopLogger discards everything.
package config
