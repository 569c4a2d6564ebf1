package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/config"
	"github.com/aep/parsekit/pql"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"
)

var (
	file        string
	includes    []string
	contentType string
	uploadName  string

	settings *viper.Viper

	queryCmd = &cobra.Command{
		Use:     "query [query] [params...]",
		Aliases: []string{"find"},
		Short:   "Find objects, e.g. '(order=\"-score\" limit=10) GameScore(playerName=?) { owner }' Sean",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runQuery,
	}

	getCmd = &cobra.Command{
		Use:   "get [class/id]",
		Short: "Get an object",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}

	putCmd = &cobra.Command{
		Use:     "put",
		Aliases: []string{"apply"},
		Short:   "Create or update objects from a file",
		RunE:    runPut,
	}

	editCmd = &cobra.Command{
		Use:   "edit [class/id]",
		Short: "Edit an object in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [class/id...]",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDelete,
	}

	batchCmd = &cobra.Command{
		Use:   "batch",
		Short: "Send batch requests from a file",
		RunE:  runBatch,
	}

	uploadCmd = &cobra.Command{
		Use:   "upload [path]",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}

	signupCmd = &cobra.Command{
		Use:   "signup [username] [password]",
		Short: "Create a user and print its session token",
		Args:  cobra.ExactArgs(2),
		RunE:  runSignUp,
	}

	loginCmd = &cobra.Command{
		Use:   "login [username] [password]",
		Short: "Log in and print the session token",
		Args:  cobra.ExactArgs(2),
		RunE:  runLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the session given by --session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	meCmd = &cobra.Command{
		Use:   "me",
		Short: "Show the user owning the session given by --session",
		Args:  cobra.NoArgs,
		RunE:  runMe,
	}
)

// RegisterCommands adds the client commands to root. Connection
// settings are read from v when a command runs.
func RegisterCommands(root *cobra.Command, v *viper.Viper) {
	settings = v

	putCmd.Flags().StringVarP(&file, "file", "f", "", "Path to JSON/YAML file, - for stdin")
	putCmd.MarkFlagRequired("file")
	batchCmd.Flags().StringVarP(&file, "file", "f", "", "Path to JSON/YAML file, - for stdin")
	batchCmd.MarkFlagRequired("file")
	getCmd.Flags().StringSliceVarP(&includes, "include", "i", nil, "Pointer fields to inline")
	uploadCmd.Flags().StringVarP(&contentType, "type", "t", "", "Content type, guessed from the file extension by default")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "Name to store the file under, defaults to the base name of path")

	root.AddCommand(queryCmd)
	root.AddCommand(getCmd)
	root.AddCommand(putCmd)
	root.AddCommand(editCmd)
	root.AddCommand(deleteCmd)
	root.AddCommand(batchCmd)
	root.AddCommand(uploadCmd)
	root.AddCommand(signupCmd)
	root.AddCommand(loginCmd)
	root.AddCommand(logoutCmd)
	root.AddCommand(meCmd)
}

func getClient() (*Client, error) {
	v := settings
	if v == nil {
		v = viper.New()
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return New(cfg, WithLogger(slog.Default()))
}

// splitRef splits a class/id reference.
func splitRef(ref string) (string, string, error) {
	className, id, ok := strings.Cut(ref, "/")
	if !ok || className == "" || id == "" || strings.Contains(id, "/") {
		return "", "", fmt.Errorf("invalid reference %q, expected class/id", ref)
	}
	return className, id, nil
}

func parseFile(file string) ([]map[string]any, error) {
	var data []byte
	var err error

	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return parseDocuments(data)
}

// parseDocuments splits data on --- lines and decodes every non-empty
// document as YAML or JSON.
func parseDocuments(data []byte) ([]map[string]any, error) {
	var objects []map[string]any

	for i, doc := range strings.Split(string(data), "---\n") {
		if strings.TrimSpace(doc) == "" {
			continue
		}

		var obj map[string]any
		if err := yaml.Unmarshal([]byte(doc), &obj); err != nil {
			return nil, fmt.Errorf("failed to parse document %d: %w", i, err)
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

func printYAML(w io.Writer, v any) error {
	enc, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode as YAML: %w", err)
	}
	_, err = w.Write(enc)
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	params := make([]any, 0, len(args)-1)
	for _, arg := range args[1:] {
		params = append(params, pql.Literal(arg))
	}

	q, err := pql.Parse(args[0], params...)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	rs, err := client.Find(cmd.Context(), q.Class, q.Descriptor())
	if err != nil {
		return err
	}

	objs, err := rs.Objects()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, obj := range objs {
		if i > 0 {
			fmt.Fprintln(out, "---")
		}
		if err := printYAML(out, obj); err != nil {
			return err
		}
	}
	if rs.Total != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d objects\n", len(objs), *rs.Total)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	className, id, err := splitRef(args[0])
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	obj, err := client.Get(cmd.Context(), className, id, includes...)
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), obj)
}

// putObjects creates every object without objectId and updates the
// others. Each object needs a className.
func putObjects(ctx context.Context, client *Client, w io.Writer, objects []map[string]any) error {
	for i, obj := range objects {
		className, _ := obj["className"].(string)
		if className == "" {
			return fmt.Errorf("document %d: className is required", i)
		}
		id, _ := obj["objectId"].(string)

		fields := make(map[string]any, len(obj))
		for k, v := range obj {
			switch k {
			case "className", "objectId", "createdAt", "updatedAt":
				continue
			}
			fields[k] = v
		}

		if id == "" {
			rsp, err := client.Create(ctx, className, fields)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			id = rsp.ObjectID
		} else if _, err := client.Update(ctx, className, id, fields); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}

		fmt.Fprintf(w, "%s/%s\n", className, id)
	}
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	objects, err := parseFile(file)
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	return putObjects(cmd.Context(), client, cmd.OutOrStdout(), objects)
}

func runEdit(cmd *cobra.Command, args []string) error {
	className, id, err := splitRef(args[0])
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	obj, err := client.Get(cmd.Context(), className, id)
	if err != nil {
		return err
	}
	obj["className"] = className

	tmpfile, err := os.CreateTemp("", "parsekit-edit-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmpfile.Name())

	if err := printYAML(tmpfile, obj); err != nil {
		tmpfile.Close()
		return err
	}
	tmpfile.Close()

	originalInfo, err := os.Stat(tmpfile.Name())
	if err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vim"
	}
	cmd2 := exec.Command(editor, tmpfile.Name())
	cmd2.Stdin = os.Stdin
	cmd2.Stdout = os.Stdout
	cmd2.Stderr = os.Stderr
	if err := cmd2.Run(); err != nil {
		return err
	}

	newInfo, err := os.Stat(tmpfile.Name())
	if err != nil {
		return err
	}
	if newInfo.ModTime() == originalInfo.ModTime() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Edit cancelled, no changes made")
		return nil
	}

	objects, err := parseFile(tmpfile.Name())
	if err != nil {
		return err
	}
	return putObjects(cmd.Context(), client, cmd.OutOrStdout(), objects)
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	for _, ref := range args {
		className, id, err := splitRef(ref)
		if err != nil {
			return err
		}
		if err := client.Delete(cmd.Context(), className, id); err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", ref)
	}
	return nil
}

// batchRequests reads documents of the form {method, path, body}. A path
// without a version prefix gets the one of client.
func batchRequests(client *Client, docs []map[string]any) ([]api.BatchRequest, error) {
	reqs := make([]api.BatchRequest, 0, len(docs))
	for i, doc := range docs {
		method, _ := doc["method"].(string)
		path, _ := doc["path"].(string)
		if method == "" || path == "" {
			return nil, fmt.Errorf("document %d: method and path are required", i)
		}
		if !strings.HasPrefix(path, client.cfg.VersionPath()+"/") {
			path = client.cfg.VersionPath() + "/" + strings.TrimPrefix(path, "/")
		}
		reqs = append(reqs, api.BatchRequest{
			Method: strings.ToUpper(method),
			Path:   path,
			Body:   doc["body"],
		})
	}
	return reqs, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	docs, err := parseFile(file)
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	reqs, err := batchRequests(client, docs)
	if err != nil {
		return err
	}

	results, err := client.Batch(cmd.Context(), reqs...)
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), results)
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]

	name := uploadName
	if name == "" {
		name = filepath.Base(path)
	}
	ct := contentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(path))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	client, err := getClient()
	if err != nil {
		return err
	}

	uploaded, err := client.UploadFile(cmd.Context(), name, ct, f)
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), uploaded)
}

func runSignUp(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	user, err := client.SignUp(cmd.Context(), args[0], args[1], nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), user.SessionToken)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	user, err := client.Login(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), user.SessionToken)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	return client.Logout(cmd.Context())
}

func runMe(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	user, err := client.Me(cmd.Context())
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), user)
}
