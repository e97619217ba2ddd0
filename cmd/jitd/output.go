package main

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"jitmcp/internal/domain"
)

func writeJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func writeYAML(value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func printTools(tools []domain.ToolMetadata) {
	fmt.Printf("tools=%d\n", len(tools))
	for _, tool := range tools {
		if tool.Category != "" {
			fmt.Printf("%s\t%s\t%s\n", tool.Name, tool.Category, tool.URI)
			continue
		}
		fmt.Printf("%s\t\t%s\n", tool.Name, tool.URI)
	}
}

func printTurnResult(result domain.TurnResult) {
	if result.Degraded != "" {
		fmt.Printf("degraded: %s\n", result.Degraded)
	}
	for _, call := range result.Calls {
		if call.Rejected {
			fmt.Printf("[%s] rejected: %s\n", call.Name, call.Err)
			continue
		}
		if call.Err != "" {
			fmt.Printf("[%s] error: %s\n", call.Name, call.Err)
			continue
		}
		fmt.Printf("[%s] %s\n", call.Name, call.Content)
	}
	if result.Answer != "" {
		fmt.Println(result.Answer)
	}
}
