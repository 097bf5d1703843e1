package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	api := flag.String("api", "http://localhost:8080", "gateway API base URL")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: claimstate [--api <url>] <digest>")
		os.Exit(1)
	}

	resp, err := http.Get(*api + "/api/claims/" + flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "query gateway: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "gateway returned %d: %s\n", resp.StatusCode, body)
		os.Exit(1)
	}
	fmt.Println(string(body))
}
