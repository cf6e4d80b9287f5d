// Package hclconfig provides the HCL implementation of config.Interpreter,
// a TOML interpreter for static layers, and the loader for the build
// manifest that declares which steps a run uses.
//
// Configuration files are written in a restricted HCL dialect:
//
//	group "app" {
//	  name = "shop"
//	  env  = environment
//
//	  group "db" {
//	    host = env_or("DB_HOST", "localhost")
//	  }
//
//	  when {
//	    condition = machine == "build-01"
//	    workers   = 8
//	  }
//	}
//
// Statements run in source order, so later assignments override earlier ones
// in the same way later files override earlier files.
package hclconfig
