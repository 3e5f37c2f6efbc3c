// Package hcl provides the HCL implementation of the `config.Loader` and
// `config.Converter` interfaces. It is responsible for parsing graph
// definition files, translating them into the format-agnostic model, and
// binding evaluated cty values to handler input structs.
//
// A definition file contains an optional `scheduler` block and any number of
// `graph` blocks:
//
//	scheduler {
//	  workers = 4
//	}
//
//	graph "main" {
//	  runs = 2
//
//	  task "pick" {
//	    select = run % 2
//	  }
//	  task "even" {
//	    handler = "print"
//	    after   = ["pick"]
//	    arguments {
//	      message = "even run ${run}"
//	    }
//	  }
//	  task "odd" {
//	    handler = "print"
//	    after   = ["pick"]
//	    arguments {
//	      message = "odd run ${run}"
//	    }
//	  }
//	}
package hcl
