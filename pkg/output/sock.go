package output

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"github.com/vmihailenco/msgpack/v5"
)

// InitSockOutput 初始化Unix socket输出
// 订阅端连接后会持续收到msgpack编码的分析结果流
func InitSockOutput(sockPath string) error {
	if sockPath == "" {
		return nil
	}

	// 如果已经有socket监听，先关闭
	if sockListener != nil {
		_ = sockListener.Close()
		sockListener = nil
	}

	// 确保输出目录存在
	dir := filepath.Dir(sockPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建socket输出目录失败: %v", err)
		}
	}

	// 删除已存在的socket文件（如果存在）
	_ = os.Remove(sockPath)

	// 创建Unix domain socket监听
	unixListener, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("创建Unix domain socket失败: %v", err)
	}

	// 启动协程接受连接并处理
	go func() {
		for {
			conn, err := unixListener.Accept()
			if err != nil {
				// 如果监听已关闭，退出循环
				if strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				logger.Error(fmt.Sprintf("Unix socket接受连接失败: %v", err))
				continue
			}

			// 对每个连接启动一个协程处理
			go handleConnection(conn)
		}
	}()

	sockListener = unixListener
	return nil
}

// handleConnection 处理单个socket连接
func handleConnection(conn net.Conn) {
	// 添加到连接集合
	sockConnMutex.Lock()
	sockConnections[conn] = true
	sockConnMutex.Unlock()

	// 函数返回时清理连接
	defer func() {
		sockConnMutex.Lock()
		delete(sockConnections, conn)
		_ = conn.Close()
		sockConnMutex.Unlock()
	}()

	// 保持连接打开，订阅端不需要发送数据
	buffer := make([]byte, 1024)
	for {
		_, err := conn.Read(buffer)
		if err != nil {
			if err != io.EOF {
				logger.Debug(fmt.Sprintf("Unix socket读取错误: %v", err))
			}
			return
		}
	}
}

// WriteToSock 将分析结果以msgpack格式广播到所有socket连接
func WriteToSock(result *types.AnalysisResult) error {
	if sockListener == nil || result == nil {
		return nil
	}

	// msgpack消息自带边界，订阅端用流式解码器逐条读取
	data, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("msgpack序列化失败: %v", err)
	}

	// 向所有连接写入数据
	sockConnMutex.Lock()
	for conn := range sockConnections {
		_, _ = conn.Write(data)
	}
	sockConnMutex.Unlock()

	return nil
}

// WriteResultToSock 将结果写入socket
func WriteResultToSock(result *types.AnalysisResult) {
	if err := WriteToSock(result); err != nil {
		logger.Error(fmt.Sprintf("写入socket失败: %v", err))
	}
}

// CloseSockOutput 关闭socket输出资源
func CloseSockOutput() error {
	var err error

	// 关闭socket监听器
	if sockListener != nil {
		if closeErr := sockListener.Close(); closeErr != nil {
			err = closeErr
		}

		// 关闭所有连接
		sockConnMutex.Lock()
		for conn := range sockConnections {
			_ = conn.Close()
		}
		sockConnections = make(map[net.Conn]bool)
		sockConnMutex.Unlock()

		sockListener = nil
	}

	return err
}

// Close 关闭所有输出资源（文件和socket）
func Close() error {
	// 关闭文件资源
	fileErr := CloseFileOutput()

	// 关闭socket资源
	sockErr := CloseSockOutput()

	// 返回第一个发生的错误
	if fileErr != nil {
		return fileErr
	}
	return sockErr
}
