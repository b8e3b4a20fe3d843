package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cart-analytics/internal/reports"
	"cart-analytics/internal/source"
)

func writeCSVFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		source.OrdersFile: "order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date\n" +
			"O1,C1,delivered,2018-05-07 09:30:00,2018-05-07 10:30:00,,,\n" +
			"O2,C2,canceled,2018-05-08 09:30:00,,,,\n" +
			"O3,C1,created,2018-05-09 21:00:00,,,,\n",
		source.CustomersFile: "customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state\n" +
			"C1,U1,01001,sao paulo,SP\n" +
			"C2,U2,20010,rio de janeiro,RJ\n",
		source.ItemsFile: "order_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value\n" +
			"O1,1,P1,S1,,10.00,1.00\n" +
			"O2,1,P1,S1,,25.50,2.00\n" +
			"GHOST,1,P1,S1,,5.00,1.00\n",
		source.PaymentsFile: "order_id,payment_sequential,payment_type,payment_installments,payment_value\n" +
			"O1,1,credit_card,1,11.00\n",
		source.ProductsFile: "product_id,product_category_name,product_name_lenght,product_description_lenght,product_photos_qty,product_weight_g,product_length_cm,product_height_cm,product_width_cm\n" +
			"P1,beleza_saude,10,100,1,200,10,10,10\n",
		source.TranslationsFile: "product_category_name,product_category_name_english\nbeleza_saude,health_beauty\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestReportsCmd(t *testing.T) {
	out, _, err := execute(t, "reports")
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != strings.Join(reports.Names(), ",") {
		t.Errorf("reports output = %v", lines)
	}
}

func TestBuildCmd_File(t *testing.T) {
	dir := writeCSVFixtures(t)
	outFile := filepath.Join(t.TempDir(), "facts.csv")

	out, _, err := execute(t, "build", "--csv-dir", dir, "--out", outFile, "--no-sinks")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	f, err := os.Open(outFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Errorf("expected header + 3 facts, got %d records", len(records))
	}

	for _, want := range []string{"facts", "orphan items", "orders without payment"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestBuildCmd_Stdout(t *testing.T) {
	dir := writeCSVFixtures(t)

	out, errOut, err := execute(t, "build", "--csv-dir", dir, "-o", "-", "--no-sinks")
	if err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("stdout should be pure CSV: %v", err)
	}
	if len(records) != 4 || records[1][0] != "O1" {
		t.Errorf("records = %v", records)
	}
	if !strings.Contains(errOut, "run") {
		t.Errorf("run summary should go to stderr, got %q", errOut)
	}
}

func TestReportCmd(t *testing.T) {
	dir := writeCSVFixtures(t)

	out, _, err := execute(t, "report", "summary", "--csv-dir", dir, "--compact")
	if err != nil {
		t.Fatal(err)
	}

	var summary map[string]any
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if summary["total_orders"] != float64(3) || summary["abandoned_orders"] != float64(1) {
		t.Errorf("summary = %v", summary)
	}
}

func TestReportCmd_Unknown(t *testing.T) {
	_, _, err := execute(t, "report", "nope", "--csv-dir", t.TempDir())
	if !errors.Is(err, reports.ErrUnknownReport) {
		t.Errorf("expected ErrUnknownReport, got %v", err)
	}
}

func TestBuildCmd_MissingSource(t *testing.T) {
	if _, _, err := execute(t, "build", "--csv-dir", t.TempDir(), "--no-sinks", "-o", "-"); err == nil {
		t.Error("expected error for a directory without input files")
	}
}
