// Command pclean is the CLI driver for the inference core: it loads a
// schema, runs the Gibbs driver over it, persists the resulting clustering,
// and can serve a read-only status view of a running model.
package main

func main() {
	Execute()
}
