// Package lua runs user scripts in a sandboxed gopher-lua state.
//
// Only the base, table, string and math libraries are opened, and the
// loaders that reach the filesystem (dofile, loadfile, load, require) are
// removed. Scripts talk to Go through globals set with SetGlobal and through
// functions called with Call:
//
//	state := lua.NewState(lua.WithTimeout(10 * time.Second))
//	defer state.Close()
//
//	if err := state.DoFile("deploy.lua"); err != nil {
//	    return err
//	}
//	results, err := state.Call(ctx, "deploy", files, target)
package lua
