package conf

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a10y/camerars/internal/logger"
)

func writeTempFile(byts []byte) (string, error) {
	tmpf, err := os.CreateTemp(os.TempDir(), "camerars-conf-")
	if err != nil {
		return "", err
	}
	defer tmpf.Close()

	_, err = tmpf.Write(byts)
	if err != nil {
		return "", err
	}

	return tmpf.Name(), nil
}

func TestConfFromFile(t *testing.T) {
	func() {
		tmpf, err := writeTempFile([]byte(
			"recordingsDir: /var/media\n" +
				"indexPath: /var/media/v0.db\n" +
				"rollDuration: 15s\n" +
				"httpAddress: 127.0.0.1:3030\n"))
		require.NoError(t, err)
		defer os.Remove(tmpf)

		conf, confPath, err := Load(tmpf, nil)
		require.NoError(t, err)
		require.Equal(t, tmpf, confPath)

		require.Equal(t, "/var/media", conf.RecordingsDir)
		require.Equal(t, "/var/media/v0.db", conf.IndexPath)
		require.Equal(t, 15*Duration(time.Second), conf.RollDuration)
		require.Equal(t, "127.0.0.1:3030", conf.HTTPAddress)

		// unset parameters keep their defaults
		require.Equal(t, LogLevel(logger.Info), conf.LogLevel)
		require.Equal(t, 1024, conf.UploadQueueSize)
		require.Equal(t, 10, conf.UploadAttempts)
	}()

	func() {
		tmpf, err := writeTempFile([]byte(``))
		require.NoError(t, err)
		defer os.Remove(tmpf)

		conf, _, err := Load(tmpf, nil)
		require.NoError(t, err)
		require.Equal(t, "recordings", conf.RecordingsDir)
		require.Equal(t, "v0.db", conf.IndexPath)
	}()

	func() {
		tmpf, err := writeTempFile([]byte(`{}`))
		require.NoError(t, err)
		defer os.Remove(tmpf)

		_, _, err = Load(tmpf, nil)
		require.NoError(t, err)
	}()
}

func TestConfFromFileAndEnv(t *testing.T) {
	t.Setenv("CAMERARS_ROLLDURATION", "20s")
	t.Setenv("CAMERARS_LOGLEVEL", "debug")

	tmpf, err := writeTempFile([]byte("rollDuration: 15s\n"))
	require.NoError(t, err)
	defer os.Remove(tmpf)

	conf, _, err := Load(tmpf, nil)
	require.NoError(t, err)

	// the environment takes precedence over the file
	require.Equal(t, 20*Duration(time.Second), conf.RollDuration)
	require.Equal(t, LogLevel(logger.Debug), conf.LogLevel)
}

func TestConfFromEnvOnly(t *testing.T) {
	t.Setenv("CAMERARS_RECORDINGSDIR", "/tmp/rec")

	conf, confPath, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "", confPath)
	require.Equal(t, "/tmp/rec", conf.RecordingsDir)
}

func TestConfS3FromEnv(t *testing.T) {
	t.Setenv("AWS_BUCKET", "my-bucket")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_REGION", "eu-west-1")

	conf, _, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, "my-bucket", conf.S3.Bucket)
	require.Equal(t, "AKIAEXAMPLE", conf.S3.AccessKeyID)
	require.Equal(t, "secret", conf.S3.SecretAccessKey)
	require.Equal(t, "eu-west-1", conf.S3.Region)
	require.Equal(t, "s3.amazonaws.com", conf.S3.Endpoint)
}

func TestConfS3EnvPrecedence(t *testing.T) {
	t.Setenv("AWS_BUCKET", "env-bucket")
	t.Setenv("AWS_ACCESS_KEY_ID", "k")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "s")

	tmpf, err := writeTempFile([]byte(
		"s3:\n" +
			"  bucket: file-bucket\n" +
			"  access_key_id: k\n" +
			"  secret_access_key: s\n"))
	require.NoError(t, err)
	defer os.Remove(tmpf)

	conf, _, err := Load(tmpf, nil)
	require.NoError(t, err)
	require.Equal(t, "env-bucket", conf.S3.Bucket)
}

func TestConfErrorNonExistentParameter(t *testing.T) {
	tmpf, err := writeTempFile([]byte("invalid: param\n"))
	require.NoError(t, err)
	defer os.Remove(tmpf)

	_, _, err = Load(tmpf, nil)
	require.EqualError(t, err, `json: unknown field "invalid"`)
}

func TestConfErrorInvalid(t *testing.T) {
	for _, ca := range []struct {
		name string
		conf string
		err  string
	}{
		{
			"invalid roll duration",
			"rollDuration: 0s\n",
			"'rollDuration' must be greater than zero",
		},
		{
			"empty recordings dir",
			"recordingsDir: \"\"\n",
			"'recordingsDir' must not be empty",
		},
		{
			"missing s3 credentials",
			"s3:\n  bucket: my-bucket\n",
			"'s3.access_key_id' and 's3.secret_access_key' are required when 's3.bucket' is set",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			tmpf, err := writeTempFile([]byte(ca.conf))
			require.NoError(t, err)
			defer os.Remove(tmpf)

			_, _, err = Load(tmpf, nil)
			require.EqualError(t, err, ca.err)
		})
	}
}

func TestConfClone(t *testing.T) {
	conf := &Conf{}
	conf.setDefaults()

	clone := conf.Clone()
	require.Equal(t, conf, clone)

	clone.RecordingsDir = "other"
	require.NotEqual(t, conf.RecordingsDir, clone.RecordingsDir)
}
