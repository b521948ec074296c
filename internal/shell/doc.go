// Package shell generates the environment script that puts installed tools
// on PATH.
//
// The script lives in the installation root next to the tool directories
// and locates them relative to itself, so the root can be moved:
//
//   - linux, darwin: setup-env.sh, meant to be sourced from bash
//   - windows: setup-env.bat, meant to be run with call
//
// Every catalog tool is listed whether or not it is installed; the script
// reports which commands it can actually find.
//
// # Example Usage
//
//	path, err := shell.Write(root, platform.FamilyLinux, catalog.Specs())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(shell.ActivationHint(platform.FamilyLinux, path))
package shell
