// Assembly validation and correctness verification

package mips

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/logger"
)

// ValidationError represents an assembly validation error
type ValidationError struct {
	Line    int
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Message, e.Code)
}

// Validator validates generated MIPS assembly
type Validator struct {
	errors []ValidationError
	warns  []ValidationError
}

// NewValidator creates a new assembly validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
		warns:  make([]ValidationError, 0),
	}
}

// Validate performs comprehensive validation on assembly code
func (v *Validator) Validate(assembly string) error {
	lines := strings.Split(assembly, "\n")

	v.validateSyntax(lines)
	v.validateRegisters(lines)
	v.validateCallingConvention(lines)
	v.validateStackBalance(lines)
	v.validateInstructionValidity(lines)
	v.validateMemoryAddressing(lines)
	v.detectRedundantMoves(lines)

	if len(v.errors) > 0 {
		return v.formatErrors()
	}

	if len(v.warns) > 0 {
		v.logWarnings()
	}

	return nil
}

// Warnings returns the warnings collected by the last Validate call
func (v *Validator) Warnings() []ValidationError {
	return v.warns
}

var (
	regToken     = regexp.MustCompile(`\$[a-z0-9]+`)
	vregToken    = regexp.MustCompile(`\bvr[0-9]+\b`)
	memOperand   = regexp.MustCompile(`^-?[0-9]+\(\$[a-z0-9]+\)$`)
	sectionNames = map[string]bool{".data": true, ".text": true}
)

// validateSyntax checks for basic syntax errors
func (v *Validator) validateSyntax(lines []string) {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || sectionNames[line] {
			continue
		}

		// Data directives: name:<tab>.kind<tab>args
		if idx := strings.Index(line, ":"); idx > 0 && idx < len(line)-1 {
			rest := strings.TrimSpace(line[idx+1:])
			if !strings.HasPrefix(rest, ".space") && !strings.HasPrefix(rest, ".word") && !strings.HasPrefix(rest, ".asciiz") {
				v.addError(i+1, "malformed data directive", line)
			}
			continue
		}

		if strings.HasSuffix(line, ":") {
			if strings.ContainsAny(line, " \t") {
				v.addError(i+1, "invalid label format (contains spaces)", line)
			}
			continue
		}

		if !strings.HasPrefix(raw, "\t") || !isValidInstruction(line) {
			v.addError(i+1, "malformed instruction", line)
		}
	}
}

// validateRegisters checks register usage correctness
func (v *Validator) validateRegisters(lines []string) {
	for i, line := range lines {
		if isDataLine(line) {
			continue
		}
		for _, tok := range regToken.FindAllString(line, -1) {
			if _, err := ParseReg(tok); err != nil {
				v.addError(i+1, fmt.Sprintf("invalid register: %s", tok), line)
			}
		}
		if vr := vregToken.FindString(line); vr != "" {
			v.addError(i+1, fmt.Sprintf("unallocated virtual register: %s", vr), line)
		}
	}
}

// validateCallingConvention checks that every register saved by a prologue
// is restored before each jr $ra
func (v *Validator) validateCallingConvention(lines []string) {
	fn := ""
	inPrologue := false
	var saved, restored map[string]bool

	for i, line := range lines {
		line = strings.TrimSpace(line)

		if isFunctionLabel(line, fn) {
			fn = strings.TrimSuffix(line, ":")
			inPrologue = true
			saved = make(map[string]bool)
			restored = make(map[string]bool)
			continue
		}
		if fn == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			inPrologue = false
			continue
		}

		mnemonic, ops := splitInstruction(line)
		switch mnemonic {
		case "sw":
			if inPrologue && len(ops) == 2 && isPrologueSlot(ops[1]) {
				saved[ops[0]] = true
			}
		case "lw":
			if len(ops) == 2 && isPrologueSlot(ops[1]) {
				restored[ops[0]] = true
			}
		case "jr":
			var missing []string
			for r := range saved {
				if !restored[r] {
					missing = append(missing, r)
				}
			}
			if len(missing) > 0 {
				v.addError(i+1, fmt.Sprintf("callee-saved registers not restored in %s: %v", fn, missing), line)
			}
			restored = make(map[string]bool)
		}
	}
}

// validateStackBalance checks that the frame is released exactly once on
// every return and that call-site adjustments are undone before the next
// block starts
func (v *Validator) validateStackBalance(lines []string) {
	fn := ""
	inPrologue := false
	frame, area := 0, 0
	prev := ""

	for i, line := range lines {
		line = strings.TrimSpace(line)

		if isFunctionLabel(line, fn) {
			fn = strings.TrimSuffix(line, ":")
			inPrologue = true
			frame, area = 0, 0
			continue
		}
		if fn == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			if area != 0 {
				v.addError(i+1, fmt.Sprintf("stack imbalance entering block: adjustments=%d", area), line)
				area = 0
			}
			inPrologue = false
			continue
		}

		mnemonic, ops := splitInstruction(line)
		switch {
		case mnemonic == "addiu" && len(ops) == 3 && ops[0] == "$sp" && ops[1] == "$sp":
			n, err := strconv.Atoi(ops[2])
			if err != nil {
				v.addError(i+1, "non-constant stack adjustment", line)
				break
			}
			if inPrologue {
				frame -= n
			} else {
				area += n
			}
		case mnemonic == "jr" || (mnemonic == "syscall" && prev == "li\t$v0, 10"):
			if area != frame {
				v.addError(i+1, fmt.Sprintf("stack imbalance at return in %s: released %d of %d", fn, area, frame), line)
			}
			area = 0
		}
		prev = line
	}
}

// validateInstructionValidity checks for invalid instruction combinations
func (v *Validator) validateInstructionValidity(lines []string) {
	for i, line := range lines {
		line = strings.TrimSpace(line)
		mnemonic, ops := splitInstruction(line)
		if mnemonic == "" || len(ops) == 0 {
			continue
		}

		if hasDestination(mnemonic) && ops[0] == "$zero" {
			v.addWarn(i+1, "writing to zero register has no effect", line)
		}

		if mnemonic == "div" && len(ops) == 2 && ops[1] == "$zero" {
			v.addError(i+1, "division by zero", line)
		}

		// 16-bit immediate fields
		switch mnemonic {
		case "addiu", "andi":
			if n, err := strconv.Atoi(ops[len(ops)-1]); err == nil && !Fits16(int32(n)) && !FitsU16(int32(n)) {
				v.addWarn(i+1, fmt.Sprintf("immediate %d may be out of range for I-type instruction", n), line)
			}
		case "lw", "sw":
			if len(ops) == 2 {
				if off, _, ok := strings.Cut(ops[1], "("); ok {
					if n, err := strconv.Atoi(off); err == nil && !Fits16(int32(n)) {
						v.addError(i+1, fmt.Sprintf("offset %d out of range", n), line)
					}
				}
			}
		}
	}
}

// validateMemoryAddressing checks memory addressing mode correctness
func (v *Validator) validateMemoryAddressing(lines []string) {
	for i, line := range lines {
		mnemonic, ops := splitInstruction(strings.TrimSpace(line))
		if mnemonic != "lw" && mnemonic != "sw" {
			continue
		}
		if len(ops) != 2 || !memOperand.MatchString(ops[1]) {
			v.addError(i+1, "invalid memory addressing mode", line)
		}
	}
}

// detectRedundantMoves identifies and warns about redundant move instructions
func (v *Validator) detectRedundantMoves(lines []string) {
	for i, line := range lines {
		line = strings.TrimSpace(line)
		mnemonic, ops := splitInstruction(line)
		if mnemonic != "move" || len(ops) != 2 {
			continue
		}

		if ops[0] == ops[1] {
			v.addWarn(i+1, fmt.Sprintf("redundant move: source and destination are identical (%s)", ops[0]), line)
			continue
		}

		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next == line {
				v.addWarn(i+2, "duplicate move instruction", next)
			}
		}
	}
}

// Helper functions

func (v *Validator) addError(line int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) addWarn(line int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("Assembly validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return errors.New(sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Assembly validation warning", "line", warn.Line, "msg", warn.Message)
	}
}

var validInsts = map[string]bool{
	"addu": true, "addiu": true, "subu": true, "mul": true, "div": true,
	"mflo": true, "mfhi": true, "and": true, "andi": true,
	"seq": true, "sne": true, "slt": true, "sle": true, "sgt": true, "sge": true,
	"move": true, "li": true, "la": true, "lw": true, "sw": true,
	"beq": true, "bne": true, "blt": true, "ble": true, "bgt": true, "bge": true,
	"j": true, "jal": true, "jr": true, "syscall": true, "nop": true,
}

func isValidInstruction(line string) bool {
	mnemonic, _ := splitInstruction(line)
	return validInsts[mnemonic]
}

func hasDestination(mnemonic string) bool {
	switch mnemonic {
	case "sw", "div", "beq", "bne", "blt", "ble", "bgt", "bge", "j", "jal", "jr", "syscall", "nop":
		return false
	}
	return validInsts[mnemonic]
}

// splitInstruction splits "op\ta, b, c" into its mnemonic and operands.
func splitInstruction(line string) (string, []string) {
	if line == "" || strings.HasSuffix(line, ":") || strings.HasPrefix(line, ".") || strings.HasPrefix(line, "#") {
		return "", nil
	}
	mnemonic, rest, _ := strings.Cut(line, "\t")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return mnemonic, nil
	}
	ops := strings.Split(rest, ",")
	for i := range ops {
		ops[i] = strings.TrimSpace(ops[i])
	}
	return mnemonic, ops
}

// isFunctionLabel reports whether line starts a new function: a label that is
// not one of the current function's block labels.
func isFunctionLabel(line, current string) bool {
	if !strings.HasSuffix(line, ":") || strings.ContainsAny(line, " \t") {
		return false
	}
	name := strings.TrimSuffix(line, ":")
	return current == "" || !strings.HasPrefix(name, current+"_")
}

func isPrologueSlot(mem string) bool {
	return strings.HasPrefix(mem, "-") && strings.HasSuffix(mem, "($sp)")
}

func isDataLine(line string) bool {
	line = strings.TrimSpace(line)
	idx := strings.Index(line, ":")
	return idx > 0 && idx < len(line)-1
}

// ValidateProgram validates an entire generated program
func ValidateProgram(assembly string) error {
	validator := NewValidator()
	return validator.Validate(assembly)
}

// QuickValidate performs fast basic validation for development
func QuickValidate(assembly string) bool {
	validator := NewValidator()
	lines := strings.Split(assembly, "\n")

	// Just check syntax and registers for quick feedback
	validator.validateSyntax(lines)
	validator.validateRegisters(lines)

	return len(validator.errors) == 0
}

// ValidateAndReport validates assembly and returns a detailed report
func ValidateAndReport(assembly string) (bool, string) {
	validator := NewValidator()
	err := validator.Validate(assembly)

	var report strings.Builder
	report.WriteString("=== MIPS Assembly Validation Report ===\n\n")

	if err != nil {
		report.WriteString(fmt.Sprintf("Status: FAILED\n\nErrors:\n%s\n", err.Error()))
		return false, report.String()
	}

	report.WriteString("Status: PASSED\n\n")

	if len(validator.warns) > 0 {
		report.WriteString("Warnings:\n")
		for _, warn := range validator.warns {
			report.WriteString(fmt.Sprintf("  Line %d: %s\n", warn.Line, warn.Message))
		}
	} else {
		report.WriteString("No warnings.\n")
	}

	lineCount := len(strings.Split(assembly, "\n"))
	instCount := 0
	scanner := bufio.NewScanner(strings.NewReader(assembly))
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "\t") {
			instCount++
		}
	}

	report.WriteString("\nStatistics:\n")
	report.WriteString(fmt.Sprintf("  Total lines: %d\n", lineCount))
	report.WriteString(fmt.Sprintf("  Instructions: %d\n", instCount))

	logger.Info("MIPS assembly validation passed", "instructions", instCount, "warnings", len(validator.warns))

	return true, report.String()
}
