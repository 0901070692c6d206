package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
	"github.com/abdul-hamid-achik/hitcase/packages/core/engine"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
	"github.com/abdul-hamid-achik/hitcase/packages/output"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Execute an ad-hoc request and print the raw response",
	Long: `Execute a single request without assertions and print the response
(status code, headers, body, duration and error) as JSON.

The request comes either from flags or from a JSON document passed with
--request (use - for stdin). An environment id applies the environment's
base URL, headers and variables; it requires --catalog.

Examples:
  hitcase debug --method GET --url https://api.example.com/health
  hitcase debug --catalog api.yaml --env 2 --method POST --url /users \
    --header "X-Trace: 1" --body '{"name":"Ada"}'
  echo '{"method":"GET","url":"https://example.com"}' | hitcase debug --request -`,
	Args: cobra.NoArgs,
	RunE: debugCommand,
}

var (
	debugFlags       settingsFlags
	debugMethod      string
	debugURL         string
	debugEnv         int64
	debugHeaders     []string
	debugParams      []string
	debugBody        string
	debugBodyType    string
	debugRequestFile string
)

func init() {
	registerSettingsFlags(debugCmd, &debugFlags)

	debugCmd.Flags().StringVarP(&debugMethod, "method", "X", "GET", "HTTP method")
	debugCmd.Flags().StringVarP(&debugURL, "url", "u", "", "Absolute URL, or a path relative to the environment's base URL")
	debugCmd.Flags().Int64Var(&debugEnv, "env", 0, "Environment id")
	debugCmd.Flags().StringArrayVarP(&debugHeaders, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	debugCmd.Flags().StringArrayVar(&debugParams, "param", nil, "Query parameter name=value (repeatable)")
	debugCmd.Flags().StringVarP(&debugBody, "body", "d", "", "Request body")
	debugCmd.Flags().StringVar(&debugBodyType, "body-type", "json", "Body type: json, text, none")
	debugCmd.Flags().StringVar(&debugRequestFile, "request", "", "Read the request from a JSON document (- for stdin)")
}

func debugCommand(cmd *cobra.Command, args []string) error {
	req, err := debugRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	s, err := debugFlags.load()
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	var store engine.Store = &catalog.Catalog{}
	if req.EnvironmentID != 0 || s.config.Catalog != "" {
		c, err := s.loadCatalog()
		if err != nil {
			return err
		}
		store = c
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := engine.New(store, engine.WithRunner(s.newRunner()), engine.WithLogger(s.logger))
	resp, err := e.DebugRun(ctx, *req)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	if err := output.WriteJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return withExitCode(ExitNetworkError, nil)
	}
	return nil
}

// debugRequest builds the request from --request or from the flags.
func debugRequest(stdin io.Reader) (*model.DebugRequest, error) {
	if debugRequestFile != "" {
		var (
			raw []byte
			err error
		)
		if debugRequestFile == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(debugRequestFile)
		}
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("failed to read request: %w", err))
		}
		if err := model.ValidateDebugRequest(raw); err != nil {
			return nil, withExitCode(ExitParseError, err)
		}
		var req model.DebugRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, withExitCode(ExitParseError, fmt.Errorf("failed to decode request: %w", err))
		}
		return &req, nil
	}

	if debugURL == "" {
		return nil, withExitCode(ExitUsageError, errors.New("--url or --request is required"))
	}
	headers, err := parseKeyValues(debugHeaders, ":")
	if err != nil {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid --header: %w", err))
	}
	params, err := parseKeyValues(debugParams, "=")
	if err != nil {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid --param: %w", err))
	}

	req := &model.DebugRequest{
		Method:        debugMethod,
		URL:           debugURL,
		EnvironmentID: debugEnv,
		Headers:       headers,
		BodyType:      model.BodyType(debugBodyType),
	}
	if len(params) > 0 {
		req.Params = make(map[string]any, len(params))
		for k, v := range params {
			req.Params[k] = v
		}
	}
	if debugBody != "" {
		req.Body = debugBodyJSON(debugBody, req.BodyType)
	}
	return req, nil
}

// debugBodyJSON encodes a body flag. JSON bodies are passed as a JSON string
// so that malformed input is reported by the request builder.
func debugBodyJSON(body string, bodyType model.BodyType) json.RawMessage {
	if bodyType.Normalize() == model.BodyJSON && json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return model.TextBody(body)
}
