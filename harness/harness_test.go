package harness

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cs217/hlsweep/inject"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/toolchain"
)

const peProfile = `
version: 1
name: pe
unit: PECore
axes:
  - {name: kIntWordWidth, values: ["8", "16"], default: "8"}
  - {name: kVectorSize, values: ["8", "16"], default: "16"}
  - {name: kNumVectorLanes, values: ["8", "16"], default: "16"}
inject:
  - {file: src/include/Spec.h, keyword: const int}
rules:
  pass: [TESTBENCH PASS]
  fail: [TESTBENCH FAIL]
  metrics:
    - {name: diff, pattern: 'Difference observed in compute Act and expected value (.*)%'}
  limits:
    - {metric: diff, max: 0.2}
actions:
  systemc_sim:
    dir: src/PECore
    run: make run
    log: logs/systemc_sim.log.txt
    echo: none
  rtl_sim:
    dir: hls/PECore
    build: make hls
    run: make vcs_sim
    log: logs/rtl_sim.log.txt
    echo: none
    collect: true
collect:
  files: [hls/PECore/concat_PECore.v]
  to: design/{{.Dir}}
area:
  report: design/{{.Dir}}/PECore.rpt
  log: logs/area.log.txt
  table:
    title: RTL AREA SUMMARY
    rule: 40
    columns:
      - {header: Width, field: kIntWordWidth, width: 6}
      - {header: Area Score, field: area, width: 10, precision: 2}
copy_rtl: make copy_rtl
table:
  title: TEST SUITE SUMMARY
  rule: 70
  columns:
    - {header: kIntWordWidth, field: kIntWordWidth, width: 15}
    - {header: kVectorSize, field: kVectorSize, width: 12}
    - {header: kNumVectorLanes, field: kNumVectorLanes, width: 15}
    - {header: Status, field: status, width: 8}
    - {header: Difference (%), field: diff, width: 15}
`

const specFile = "src/include/Spec.h"

const specDefaults = `#pragma once
// Datapath parameters.
const int kIntWordWidth = 8;
const int kVectorSize = 16;
const int kNumVectorLanes = 16;
`

func peOutput(root string) toolchain.Result {
	values, err := inject.Current(filepath.Join(root, specFile), "const int", []string{"kIntWordWidth", "kVectorSize"})
	Expect(err).NotTo(HaveOccurred())
	diff := "0.1"
	if values["kIntWordWidth"] == "16" && values["kVectorSize"] == "8" {
		diff = "0.3"
	}
	return toolchain.Result{Stdout: "TESTBENCH PASS\nDifference observed in compute Act and expected value " + diff + "%\n"}
}

func writeFile(root, name, content string) {
	file := filepath.Join(root, name)
	Expect(os.MkdirAll(filepath.Dir(file), 0775)).To(Succeed())
	Expect(os.WriteFile(file, []byte(content), 0664)).To(Succeed())
}

func readFile(root, name string) string {
	data, err := os.ReadFile(filepath.Join(root, name))
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

var _ = Describe("Harness", func() {
	var (
		mockCtrl   *gomock.Controller
		mockRunner *MockRunner
		root       string
		out        *bytes.Buffer
		h          *Harness
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockRunner = NewMockRunner(mockCtrl)

		var err error
		root, err = os.MkdirTemp("", "hlsweep")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, root)
		writeFile(root, specFile, specDefaults)

		p, err := profile.Parse([]byte(peProfile))
		Expect(err).NotTo(HaveOccurred())
		out = &bytes.Buffer{}
		h = New(p, mockRunner, map[string]string{}, root)
		h.Out = out
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should sweep every combination and downgrade results over the limit", func() {
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
				Expect(cmd.Script).To(Equal("make run"))
				Expect(cmd.Dir).To(Equal(filepath.Join(root, "src/PECore")))
				Expect(cmd.Label).To(HavePrefix("run kIntWordWidth_"))
				return peOutput(root), nil
			}).
			Times(8)

		outcome, err := h.Dispatch(context.Background(), profile.SystemCSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Rows).To(HaveLen(8))
		Expect(outcome.Errors).To(Equal(2))
		Expect(outcome.Rows[0]["kIntWordWidth"]).To(Equal("8"))
		Expect(outcome.Rows[0]["kNumVectorLanes"]).To(Equal("8"))
		Expect(outcome.Rows[7]["kNumVectorLanes"]).To(Equal("16"))
		for _, row := range outcome.Rows {
			if row["kIntWordWidth"] == "16" && row["kVectorSize"] == "8" {
				Expect(row[StatusField]).To(Equal("FAILED"))
				Expect(row["diff"]).To(Equal("0.3"))
			} else {
				Expect(row[StatusField]).To(Equal("PASSED"))
			}
		}
		Expect(out.String()).To(ContainSubstring("Test Failed with 2 errors"))
		Expect(readFile(root, "logs/systemc_sim.log.txt")).To(ContainSubstring("TEST SUITE SUMMARY"))
		Expect(readFile(root, specFile)).To(Equal(specDefaults))
	})

	It("should record a nonzero exit as a failed row", func() {
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			Return(toolchain.Result{Stdout: "TESTBENCH PASS\n", ExitCode: 2}, nil).
			Times(8)

		outcome, err := h.Simulate(context.Background(), profile.SystemCSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Errors).To(Equal(8))
		Expect(outcome.Rows[0].Get("diff")).To(Equal("N/A"))
	})

	It("should keep a run without markers unknown", func() {
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			Return(toolchain.Result{Stdout: "make: nothing to be done\n"}, nil).
			Times(8)

		outcome, err := h.Simulate(context.Background(), profile.SystemCSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Errors).To(Equal(0))
		Expect(outcome.Rows[3][StatusField]).To(Equal("UNKNOWN"))
		Expect(out.String()).To(ContainSubstring("Test Passed"))
	})

	It("should restore the defaults when interrupted", func() {
		calls := 0
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
				calls++
				if calls == 3 {
					return toolchain.Result{}, context.Canceled
				}
				return peOutput(root), nil
			}).
			Times(3)

		_, err := h.Simulate(context.Background(), profile.SystemCSim)

		Expect(err).To(MatchError(context.Canceled))
		Expect(readFile(root, specFile)).To(Equal(specDefaults))
		Expect(filepath.Join(root, "logs/systemc_sim.log.txt")).NotTo(BeAnExistingFile())
	})

	It("should stop before running when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.Simulate(ctx, profile.SystemCSim)

		Expect(err).To(MatchError(context.Canceled))
		Expect(readFile(root, specFile)).To(Equal(specDefaults))
	})

	It("should clean exactly once and touch nothing else", func() {
		writeFile(root, specFile, strings.Replace(specDefaults, "= 8;", "= 16;", 1))
		mockRunner.EXPECT().
			Run(gomock.Any(), toolchain.Command{Args: []string{"make", "clean"}, Dir: root}).
			Return(toolchain.Result{ExitCode: 2}, nil).
			Times(1)

		outcome, err := h.Dispatch(context.Background(), profile.Clean)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(BeNil())
		Expect(readFile(root, specFile)).To(ContainSubstring("kIntWordWidth = 16;"))
	})

	It("should record a failed build as a compilation failure", func() {
		writeFile(root, "design/kIntWordWidth_8_kVectorSize_8_kNumVectorLanes_8/PECore.rpt", "")
		gomock.InOrder(
			mockRunner.EXPECT().
				Run(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
					Expect(cmd.Script).To(Equal("make hls"))
					Expect(cmd.Dir).To(Equal(filepath.Join(root, "hls/PECore")))
					Expect(cmd.Label).To(HavePrefix("build kIntWordWidth_"))
					return toolchain.Result{Stderr: "error", ExitCode: 1}, nil
				}).
				Times(8),
			mockRunner.EXPECT().
				Run(gomock.Any(), toolchain.Command{Script: "make copy_rtl", Dir: root}).
				Return(toolchain.Result{}, nil),
		)

		outcome, err := h.Dispatch(context.Background(), profile.RTLSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Errors).To(Equal(8))
		Expect(outcome.Rows[0][TestField]).To(Equal(CompilationFailure))
		Expect(filepath.Join(root, "logs/area.log.txt")).NotTo(BeAnExistingFile())
	})

	It("should run the simulation and collect the generated RTL", func() {
		writeFile(root, "hls/PECore/concat_PECore.v", "module PECore;\nendmodule\n")
		mockRunner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
				if cmd.Script == "make vcs_sim" {
					return peOutput(root), nil
				}
				return toolchain.Result{}, nil
			}).
			Times(17)

		outcome, err := h.Dispatch(context.Background(), profile.RTLSim)

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Rows).To(HaveLen(8))
		Expect(filepath.Join(root, "design/kIntWordWidth_16_kVectorSize_8_kNumVectorLanes_8/concat_PECore.v")).To(BeAnExistingFile())
	})

	It("should fail a copy_rtl that exits nonzero", func() {
		mockRunner.EXPECT().
			Run(gomock.Any(), toolchain.Command{Script: "make copy_rtl", Dir: root}).
			Return(toolchain.Result{ExitCode: 2, Stderr: "no rule"}, nil)

		_, err := h.Dispatch(context.Background(), profile.CopyRTL)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("no rule"))
	})

	It("should reject actions the profile does not define", func() {
		_, err := h.Dispatch(context.Background(), profile.HWSim)

		Expect(err).To(HaveOccurred())
	})

	Context("area", func() {
		It("should tabulate the area score of every combination", func() {
			for _, dir := range []string{
				"kIntWordWidth_8_kVectorSize_8_kNumVectorLanes_8",
				"kIntWordWidth_8_kVectorSize_8_kNumVectorLanes_16",
				"kIntWordWidth_8_kVectorSize_16_kNumVectorLanes_8",
				"kIntWordWidth_8_kVectorSize_16_kNumVectorLanes_16",
				"kIntWordWidth_16_kVectorSize_8_kNumVectorLanes_8",
				"kIntWordWidth_16_kVectorSize_8_kNumVectorLanes_16",
				"kIntWordWidth_16_kVectorSize_16_kNumVectorLanes_8",
				"kIntWordWidth_16_kVectorSize_16_kNumVectorLanes_16",
			} {
				writeFile(root, "design/"+dir+"/PECore.rpt", "Total Area Score:   1.0   2.0   1234.567\n")
			}
			writeFile(root, "design/kIntWordWidth_8_kVectorSize_8_kNumVectorLanes_16/PECore.rpt", "no score\n")

			rows, err := h.Area(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(8))
			Expect(rows[0][AreaField]).To(Equal("1234.567"))
			Expect(rows[1].Get(AreaField)).To(Equal("N/A"))
			Expect(out.String()).To(ContainSubstring("1234.57"))
			Expect(readFile(root, "logs/area.log.txt")).To(ContainSubstring("RTL AREA SUMMARY"))
		})

		It("should skip the table when a report is missing", func() {
			rows, err := h.Area(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeNil())
			Expect(filepath.Join(root, "logs/area.log.txt")).NotTo(BeAnExistingFile())
		})
	})
})
