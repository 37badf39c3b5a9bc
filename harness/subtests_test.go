package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/toolchain"
)

const actProfile = `
version: 1
name: act
unit: ActUnit
axes:
  - {name: ppu, values: [PPU, PPUPwl], default: PPU}
prepare:
  - cp {{.Env.SRC_HOME}}/ActUnit/{{.P.ppu}}/PPU.h {{.Env.SRC_HOME}}/include/PPU.h
rules:
  pass: [TESTBENCH PASS]
  fail: [TESTBENCH FAIL]
  blocks:
    - pattern: 'Average % Difference: ([\d.e-]+)%(?s:.)*?MSE %: ([\d.e-]+)'
      names: [diff, mse]
  limits:
    - {metric: diff, max: 5.0}
subtests:
  names: [Tanh, SiLu, GeLu, ReLu]
  metric: diff
actions:
  systemc_sim:
    requires: [SRC_HOME]
    dir: '{{.Env.SRC_HOME}}/ActUnit'
    build: make sim_test
    run: make run
    log: logs/systemc_sim.log.txt
    echo: all
table:
  title: TEST SUITE SUMMARY
  rule: 70
  columns:
    - {header: Status, field: status, width: 8}
    - {header: Avg Diff (%), field: diff, width: 12, precision: 6}
    - {header: MSE (%), field: mse, width: 12, precision: 6}
  pivot: {row: test, row_header: Test Name, row_width: 10, group: ppu, sort: true, skip: [N/A]}
`

func actOutput(diffs ...string) string {
	var b strings.Builder
	for _, diff := range diffs {
		fmt.Fprintf(&b, "Average %% Difference: %s%%\nmax error 0.5\nMSE %%: 0.0001\n", diff)
	}
	b.WriteString("TESTBENCH PASS\n")
	return b.String()
}

var _ = Describe("Sub-tests", func() {
	var (
		mockCtrl   *gomock.Controller
		mockRunner *MockRunner
		root       string
		out        *bytes.Buffer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockRunner = NewMockRunner(mockCtrl)

		var err error
		root, err = os.MkdirTemp("", "hlsweep")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, root)
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should expand one run into a row per function", func() {
		p, err := profile.Parse([]byte(actProfile))
		Expect(err).NotTo(HaveOccurred())
		src := filepath.Join(root, "src")
		h := New(p, mockRunner, map[string]string{"SRC_HOME": src}, root)
		h.Out = out

		prepared := []string{}
		current := ""
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
				switch {
				case strings.HasPrefix(cmd.Script, "cp "):
					prepared = append(prepared, cmd.Script)
					current = strings.Split(strings.TrimPrefix(cmd.Script, "cp "+src+"/ActUnit/"), "/")[0]
					Expect(cmd.Dir).To(Equal(root))
					return toolchain.Result{}, nil
				case cmd.Script == "make run":
					Expect(cmd.Dir).To(Equal(filepath.Join(src, "ActUnit")))
					if current == "PPUPwl" {
						return toolchain.Result{Stdout: actOutput("1.25", "6.5", "0.1", "0.000001")}, nil
					}
					return toolchain.Result{Stdout: actOutput("0.5", "0.5", "0.5", "0.5")}, nil
				}
				return toolchain.Result{Stdout: "compiled\n"}, nil
			}).
			Times(7)

		outcome, err := h.Simulate(context.Background(), profile.SystemCSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Rows).To(HaveLen(8))
		Expect(outcome.Errors).To(Equal(1))
		Expect(outcome.Rows[5][TestField]).To(Equal("SiLu"))
		Expect(outcome.Rows[5][StatusField]).To(Equal("FAILED"))
		Expect(outcome.Rows[5]["mse"]).To(Equal("0.0001"))
		Expect(prepared).To(HaveLen(3))
		Expect(prepared[2]).To(ContainSubstring("/ActUnit/PPU/PPU.h"))
		Expect(out.String()).To(ContainSubstring("Test Name"))
		Expect(out.String()).To(ContainSubstring("6.500000"))
		Expect(out.String()).To(ContainSubstring("Test Failed with 1 errors"))
	})

	It("should report a run without results as a single row", func() {
		p, err := profile.Parse([]byte(actProfile))
		Expect(err).NotTo(HaveOccurred())
		h := New(p, mockRunner, map[string]string{"SRC_HOME": filepath.Join(root, "src")}, root)
		h.Out = out
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
				if cmd.Script == "make run" {
					return toolchain.Result{Stdout: "TESTBENCH FAIL\n"}, nil
				}
				return toolchain.Result{}, nil
			}).
			Times(7)

		outcome, err := h.Simulate(context.Background(), profile.SystemCSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Rows).To(HaveLen(2))
		Expect(outcome.Rows[0][TestField]).To(Equal("N/A"))
		Expect(outcome.Errors).To(Equal(2))
	})

	It("should refuse to run without its environment", func() {
		p, err := profile.Parse([]byte(actProfile))
		Expect(err).NotTo(HaveOccurred())
		h := New(p, mockRunner, map[string]string{}, root)

		_, err = h.Simulate(context.Background(), profile.SystemCSim)

		Expect(err).To(MatchError(ContainSubstring("SRC_HOME")))
	})

	It("should judge every fixed sub-test of the hardware run", func() {
		p, err := profile.Builtin("actunit-hw")
		Expect(err).NotTo(HaveOccurred())
		for _, ppu := range []string{"PPU", "PPUPwl", "PPUTaylor"} {
			writeFile(root, "design/concat_ActUnit/"+ppu+"/concat_ActUnit.v", "module ActUnit_"+ppu+";\n")
		}
		h := New(p, mockRunner, map[string]string{"CL_DIR": root, "CL_DESIGN_NAME": "design_top"}, root)
		h.Out = out

		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
				staged := readFile(root, "design/concat_ActUnit.v")
				lines := []string{"Data transfer cycles: 120", "Compute cycles: 48"}
				for i := 0; i < 4; i++ {
					if strings.Contains(staged, "PPUTaylor") && i == 3 {
						break
					}
					diff := "1.5%"
					if strings.Contains(staged, "PPUPwl") && i == 0 {
						diff = "5.0%"
					}
					lines = append(lines, "Dest: Average difference observed "+diff, "Dest: MSE observed 0.01%")
				}
				lines = append(lines, "TEST FINISHED")
				return toolchain.Result{Stdout: strings.Join(lines, "\n") + "\n"}, nil
			}).
			Times(3)

		outcome, err := h.Simulate(context.Background(), profile.HWSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Rows).To(HaveLen(12))
		Expect(outcome.Errors).To(Equal(2))
		Expect(outcome.Rows[4][StatusField]).To(Equal("FAILED"))
		Expect(outcome.Rows[11][StatusField]).To(Equal("FAILED"))
		Expect(outcome.Rows[11].Get("diff")).To(Equal("N/A"))
		Expect(outcome.Rows[11]["data_cycles"]).To(Equal("120"))
		Expect(readFile(root, "design/concat_ActUnit.v")).To(ContainSubstring("PPUPwl"))
		Expect(out.String()).To(ContainSubstring("Dest: MSE observed 0.01%"))
	})
})
