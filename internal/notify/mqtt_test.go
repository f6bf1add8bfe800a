package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"devicemonitor/internal/models"
)

type mockToken struct {
	mock.Mock
}

func (m *mockToken) Wait() bool {
	return m.Called().Bool(0)
}

func (m *mockToken) WaitTimeout(timeout time.Duration) bool {
	return m.Called(timeout).Bool(0)
}

func (m *mockToken) Done() <-chan struct{} {
	return m.Called().Get(0).(<-chan struct{})
}

func (m *mockToken) Error() error {
	return m.Called().Error(0)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Connect() mqtt.Token {
	return m.Called().Get(0).(mqtt.Token)
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.Called(topic, qos, retained, payload).Get(0).(mqtt.Token)
}

func (m *mockClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func sampleEvent() models.StatusEvent {
	return models.StatusEvent{
		DeviceID:  "dev-1",
		Name:      "Router",
		Address:   "10.0.0.1",
		Status:    models.StatusOnline,
		Previous:  models.StatusOffline,
		CheckedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMQTTPublisherPublishesEvent(t *testing.T) {
	token := new(mockToken)
	token.On("WaitTimeout", publishTimeout).Return(true)
	token.On("Error").Return(nil)

	client := new(mockClient)
	client.On("Publish", "devicemonitor/status/dev-1", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) {
			var got models.StatusEvent
			require.NoError(t, json.Unmarshal(args.Get(3).([]byte), &got))
			assert.Equal(t, sampleEvent(), got)
		}).
		Return(token)

	p := NewMQTTPublisher(client, MQTTConfig{Topic: "devicemonitor/status/", QOS: 1}, zerolog.Nop())
	p.Notify(sampleEvent())

	client.AssertExpectations(t)
	token.AssertExpectations(t)
}

func TestMQTTPublisherSwallowsErrors(t *testing.T) {
	token := new(mockToken)
	token.On("WaitTimeout", publishTimeout).Return(true)
	token.On("Error").Return(errors.New("broker gone"))

	client := new(mockClient)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token)

	p := NewMQTTPublisher(client, MQTTConfig{Topic: "t"}, zerolog.Nop())
	assert.NotPanics(t, func() { p.Notify(sampleEvent()) })
	client.AssertExpectations(t)
}

func TestMQTTPublisherTimeout(t *testing.T) {
	token := new(mockToken)
	token.On("WaitTimeout", publishTimeout).Return(false)

	client := new(mockClient)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token)

	p := NewMQTTPublisher(client, MQTTConfig{Topic: "t"}, zerolog.Nop())
	p.Notify(sampleEvent())

	token.AssertNotCalled(t, "Error")
}

func TestMQTTPublisherClose(t *testing.T) {
	client := new(mockClient)
	client.On("Disconnect", uint(250)).Return()

	NewMQTTPublisher(client, MQTTConfig{Topic: "t"}, zerolog.Nop()).Close()
	client.AssertExpectations(t)
}

func TestDialMQTTRequiresBroker(t *testing.T) {
	_, err := DialMQTT(MQTTConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
