package main

import (
	"flag"
	"log"
	"os"
)

type Options struct {
	Mode       string
	ConfigPath string
	DBUrl      string
	BaseURL    string
	Model      string
	Port       string
	VectorDim  int
	Workers    int
}

func main() {
	opts := parseFlags()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Options {
	var opts Options

	flag.StringVar(&opts.Mode, "mode", "serve", "Run mode: serve, worker or reindex")
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&opts.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&opts.BaseURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&opts.Model, "model", "", "Embedding model to use")
	flag.StringVar(&opts.Port, "port", "", "HTTP listen port")
	flag.IntVar(&opts.VectorDim, "vector-dim", 0, "Vector dimension")
	flag.IntVar(&opts.Workers, "workers", 0, "Embedding worker concurrency")
	flag.Parse()

	return opts
}
