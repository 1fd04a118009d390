package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Command line tool for moving character archives in and out of a running
// backend. Useful for migrating a companion between deployments or keeping
// offline backups of a relationship history.

func main() {
	baseURLPtr := flag.String("base-url", "http://localhost:8081", "Backend base URL")
	tokenPtr := flag.String("token", os.Getenv("COMPANION_TOKEN"), "JWT bearer token (defaults to COMPANION_TOKEN env var)")
	exportPtr := flag.Uint("export", 0, "Character ID to export")
	outPtr := flag.String("out", "", "Output path for the exported archive (defaults to character-<id>.zip)")
	importPtr := flag.String("import", "", "Path of an archive to import")
	helpPtr := flag.Bool("help", false, "Show usage information")

	flag.Parse()

	if *helpPtr || (*exportPtr == 0 && *importPtr == "") {
		fmt.Println("Archive Tool Usage:")
		fmt.Println("  -export <id>    Export a character archive to a zip file")
		fmt.Println("  -out <path>     Output path for export (optional)")
		fmt.Println("  -import <path>  Import a character archive from a zip file")
		fmt.Println("  -base-url       Backend base URL (default http://localhost:8081)")
		fmt.Println("  -token          JWT bearer token (or set COMPANION_TOKEN)")
		os.Exit(0)
	}

	if *tokenPtr == "" {
		fmt.Println("Error: no auth token provided (use -token or COMPANION_TOKEN)")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 2 * time.Minute}

	if *exportPtr != 0 {
		out := *outPtr
		if out == "" {
			out = fmt.Sprintf("character-%d.zip", *exportPtr)
		}
		if err := exportArchive(client, *baseURLPtr, *tokenPtr, *exportPtr, out); err != nil {
			fmt.Printf("Error exporting character %d: %v\n", *exportPtr, err)
			os.Exit(1)
		}
		fmt.Printf("Exported character %d to %s\n", *exportPtr, out)
	}

	if *importPtr != "" {
		ch, err := importArchive(client, *baseURLPtr, *tokenPtr, *importPtr)
		if err != nil {
			fmt.Printf("Error importing archive %s: %v\n", *importPtr, err)
			os.Exit(1)
		}
		fmt.Printf("Imported character %v (id %v)\n", ch["name"], ch["id"])
	}
}

func exportArchive(client *http.Client, baseURL, token string, characterID uint, outPath string) error {
	url := fmt.Sprintf("%s/api/v1/characters/%d/export", baseURL, characterID)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error response: %s, status: %d", string(bodyBytes), resp.StatusCode)
	}

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("error writing archive: %w", err)
	}
	fmt.Printf("Wrote %d bytes\n", n)
	return nil
}

func importArchive(client *http.Client, baseURL, token, path string) (map[string]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening archive: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("archive", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("error copying archive: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing writer: %w", err)
	}

	req, err := http.NewRequest("POST", baseURL+"/api/v1/archives/import", body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("error response: %s, status: %d", string(bodyBytes), resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return result, nil
}
