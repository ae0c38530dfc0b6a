package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/cashbackmart/internal/service/validate"
)

func main() {
	kind := pflag.StringP("kind", "k", "cnpj", "Document kind (cpf, cnpj)")
	count := pflag.IntP("count", "n", 1, "How many documents to print")
	pflag.Parse()

	var generate func() string
	switch *kind {
	case "cpf":
		generate = validate.GenerateCPF
	case "cnpj":
		generate = validate.GenerateCNPJ
	default:
		fmt.Fprintf(os.Stderr, "unknown document kind %q\n", *kind)
		os.Exit(1)
	}

	for range *count {
		fmt.Println(generate())
	}
}
