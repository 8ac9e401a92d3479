//go:build windows

package supervisor

import (
	"fmt"
	"log/slog"
	"strings"
	"syscall"
	"unsafe"

	"context"

	"github.com/openframe-oss/openframe-client/internal/model"
	"golang.org/x/sys/windows"
)

var (
	modwtsapi32 = syscall.NewLazyDLL("wtsapi32.dll")
	modadvapi32 = syscall.NewLazyDLL("advapi32.dll")
	modkernel32 = syscall.NewLazyDLL("kernel32.dll")

	procWTSEnumerateSessionsW    = modwtsapi32.NewProc("WTSEnumerateSessionsW")
	procWTSFreeMemory            = modwtsapi32.NewProc("WTSFreeMemory")
	procWTSQueryUserToken        = modwtsapi32.NewProc("WTSQueryUserToken")
	procWTSGetActiveConsoleSessionId = modkernel32.NewProc("WTSGetActiveConsoleSessionId")
	procProcessIdToSessionId     = modkernel32.NewProc("ProcessIdToSessionId")
	procDuplicateTokenEx         = modadvapi32.NewProc("DuplicateTokenEx")
	procCreateProcessAsUserW     = modadvapi32.NewProc("CreateProcessAsUserW")
)

const (
	wtsActive            = 0
	wtsListen            = 6
	wtsCurrentServerHandle = 0
	securityImpersonation = 2
	tokenPrimary          = 1
	tokenAllAccess        = 0xF01FF
	startfUseShowWindow   = 0x00000001
	swShow                = 5
	createNewProcessGroup = 0x00000200
)

// wtsSessionInfo mirrors WTS_SESSION_INFOW: the subset of fields needed to
// pick the best session.
type wtsSessionInfo struct {
	SessionID      uint32
	WinStationName *uint16
	State          uint32
}

type startupInfo struct {
	Cb              uint32
	Reserved1       *uint16
	Desktop         *uint16
	Title           *uint16
	X, Y            uint32
	XSize, YSize    uint32
	XCountChars     uint32
	YCountChars     uint32
	FillAttribute   uint32
	Flags           uint32
	ShowWindow      uint16
	Reserved2       uint16
	Reserved3       *byte
	StdInput        syscall.Handle
	StdOutput       syscall.Handle
	StdErr          syscall.Handle
}

type processInformation struct {
	Process   syscall.Handle
	Thread    syscall.Handle
	ProcessID uint32
	ThreadID  uint32
}

// launch dispatches on tool's SessionType: User sessions are placed onto
// the active interactive desktop via CreateProcessAsUser, Console sessions
// are currently not launched at all (the mesh agent that used to run there
// is now installed separately as a service), and Service sessions use the
// plain spawn path.
func launch(ctx context.Context, tool *model.InstalledTool, path string, args []string) (outcome, error) {
	switch tool.SessionType {
	case model.SessionTypeUser:
		slog.Info("launching tool in user session", "tool_agent_id", tool.ToolAgentID)
		pid, handle, err := launchInUserSession(path, args)
		if err != nil {
			return outcomeExited, err
		}
		waitForProcess(tool.ToolAgentID, pid, handle)
		return outcomeExited, nil
	case model.SessionTypeConsole:
		slog.Info("session_type console, skipping launch", "tool_agent_id", tool.ToolAgentID)
		return outcomeSkip, nil
	default: // Service, or unset
		return standardSpawn(ctx, tool.ToolAgentID, path, args)
	}
}

// getActiveUserSession enumerates WTS sessions, preferring an active RDP
// session, then the active Console session, then the highest-numbered
// non-listen session. Falls back to the current process's own session.
func getActiveUserSession() (uint32, bool) {
	var sessionsPtr uintptr
	var count uint32
	ret, _, _ := procWTSEnumerateSessionsW.Call(
		uintptr(wtsCurrentServerHandle),
		0,
		1,
		uintptr(unsafe.Pointer(&sessionsPtr)),
		uintptr(unsafe.Pointer(&count)),
	)
	if ret == 0 {
		return fallbackToCurrentSession()
	}
	defer procWTSFreeMemory.Call(sessionsPtr)

	const entrySize = unsafe.Sizeof(wtsSessionInfo{})
	consoleID := activeConsoleSessionID()

	var bestRDP, bestConsole, bestOther uint32
	haveRDP, haveConsole, haveOther := false, false, false

	for i := uint32(0); i < count; i++ {
		entry := (*wtsSessionInfo)(unsafe.Pointer(sessionsPtr + uintptr(i)*entrySize))
		if entry.State == wtsListen || entry.SessionID == 0 {
			continue
		}
		if entry.State != wtsActive {
			if entry.SessionID > bestOther {
				bestOther, haveOther = entry.SessionID, true
			}
			continue
		}
		if entry.SessionID == consoleID {
			bestConsole, haveConsole = entry.SessionID, true
			continue
		}
		if entry.SessionID > bestRDP {
			bestRDP, haveRDP = entry.SessionID, true
		}
		if entry.SessionID > bestOther {
			bestOther, haveOther = entry.SessionID, true
		}
	}

	switch {
	case haveRDP:
		return bestRDP, true
	case haveConsole:
		return bestConsole, true
	case haveOther:
		return bestOther, true
	default:
		return fallbackToCurrentSession()
	}
}

func activeConsoleSessionID() uint32 {
	ret, _, _ := procWTSGetActiveConsoleSessionId.Call()
	return uint32(ret)
}

func fallbackToCurrentSession() (uint32, bool) {
	pid := uint32(windows.GetCurrentProcessId())
	var sessionID uint32
	ret, _, _ := procProcessIdToSessionId.Call(uintptr(pid), uintptr(unsafe.Pointer(&sessionID)))
	return sessionID, ret != 0
}

// launchInUserSession builds the primary token for the best active
// interactive session and spawns path there on desktop "winsta0\default",
// falling back to a null desktop if the first attempt fails.
func launchInUserSession(path string, args []string) (pid uint32, handle syscall.Handle, err error) {
	sessionID, ok := getActiveUserSession()
	if !ok {
		return 0, 0, fmt.Errorf("no active user session found")
	}

	var userToken syscall.Handle
	ret, _, callErr := procWTSQueryUserToken.Call(uintptr(sessionID), uintptr(unsafe.Pointer(&userToken)))
	if ret == 0 {
		return 0, 0, fmt.Errorf("failed to get user token for session %d: %w", sessionID, callErr)
	}
	defer syscall.CloseHandle(userToken)

	var primaryToken syscall.Handle
	ret, _, callErr = procDuplicateTokenEx.Call(
		uintptr(userToken),
		uintptr(tokenAllAccess),
		0,
		uintptr(securityImpersonation),
		uintptr(tokenPrimary),
		uintptr(unsafe.Pointer(&primaryToken)),
	)
	if ret == 0 {
		return 0, 0, fmt.Errorf("failed to duplicate token for session %d: %w", sessionID, callErr)
	}
	defer syscall.CloseHandle(primaryToken)

	cmdLine := buildCommandLine(path, args)

	pid, handle, err = createProcessAsUser(primaryToken, cmdLine, `winsta0\default`)
	if err != nil {
		slog.Warn("CreateProcessAsUser failed with desktop, retrying without one", "error", err)
		pid, handle, err = createProcessAsUser(primaryToken, cmdLine, "")
		if err != nil {
			return 0, 0, fmt.Errorf("failed to launch process in user session: %w", err)
		}
	}
	return pid, handle, nil
}

func buildCommandLine(path string, args []string) string {
	var b strings.Builder
	b.WriteString(`"`)
	b.WriteString(path)
	b.WriteString(`"`)
	for _, a := range args {
		b.WriteByte(' ')
		if strings.Contains(a, " ") {
			b.WriteByte('"')
			b.WriteString(a)
			b.WriteByte('"')
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}

func createProcessAsUser(token syscall.Handle, cmdLine, desktop string) (uint32, syscall.Handle, error) {
	si := startupInfo{Flags: startfUseShowWindow, ShowWindow: swShow}
	si.Cb = uint32(unsafe.Sizeof(si))
	if desktop != "" {
		desktopPtr, err := syscall.UTF16PtrFromString(desktop)
		if err != nil {
			return 0, 0, err
		}
		si.Desktop = desktopPtr
	}

	cmdLinePtr, err := syscall.UTF16PtrFromString(cmdLine)
	if err != nil {
		return 0, 0, err
	}

	var pi processInformation
	ret, _, callErr := procCreateProcessAsUserW.Call(
		uintptr(token),
		0,
		uintptr(unsafe.Pointer(cmdLinePtr)),
		0, 0, 0,
		uintptr(createNewProcessGroup),
		0, 0,
		uintptr(unsafe.Pointer(&si)),
		uintptr(unsafe.Pointer(&pi)),
	)
	if ret == 0 {
		return 0, 0, callErr
	}
	syscall.CloseHandle(pi.Thread)
	return pi.ProcessID, pi.Process, nil
}

func waitForProcess(toolAgentID string, pid uint32, handle syscall.Handle) {
	defer syscall.CloseHandle(handle)
	windows.WaitForSingleObject(windows.Handle(handle), windows.INFINITE)

	var exitCode uint32
	_ = windows.GetExitCodeProcess(windows.Handle(handle), &exitCode)
	slog.Warn("tool process exited", "tool_agent_id", toolAgentID, "pid", pid, "exit_code", exitCode)
}
