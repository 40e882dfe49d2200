package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"

	"bibliohub/pkg/utils"
)

func main() {
	// serves data/catalog.json at GET /catalog
	dataPath := flag.String("data", "data/catalog.json", "catalog snapshot path")
	flag.Parse()

	cfg := utils.LoadServerConfig()

	http.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		b, err := os.ReadFile(*dataPath)
		if err != nil {
			http.Error(w, "cannot read catalog snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		// validate JSON so a bad file doesn't silently break
		var tmp any
		if err := json.Unmarshal(b, &tmp); err != nil {
			http.Error(w, "catalog snapshot invalid JSON: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})

	log.Printf("catalog-server listening on %s", cfg.CatalogAddr)
	log.Fatal(http.ListenAndServe(cfg.CatalogAddr, nil))
}
